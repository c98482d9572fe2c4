package validate

import (
	"testing"
)

// BenchmarkValidatorNotEmpty benchmarks NotEmpty validation
func BenchmarkValidatorNotEmpty(b *testing.B) {
	v := New()

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		v.NotEmpty("field", "value")
		v.Clear()
	}
}

// BenchmarkValidatorRange benchmarks Range validation
func BenchmarkValidatorRange(b *testing.B) {
	v := New()

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		v.Range("port", 8080, 1, 65535)
		v.Clear()
	}
}

// BenchmarkValidatorEndpointURL benchmarks endpoint validation
func BenchmarkValidatorEndpointURL(b *testing.B) {
	v := New()
	endpoint := "https://api-inference.huggingface.co"

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		v.EndpointURL("endpoint", endpoint)
		v.Clear()
	}
}

// BenchmarkNormalizeRepoID benchmarks repository ID validation
func BenchmarkNormalizeRepoID(b *testing.B) {
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		_, _ = NormalizeRepoID("deepset/roberta-base-squad2")
	}
}

// BenchmarkValidatorMultipleChecks benchmarks realistic validation scenario
func BenchmarkValidatorMultipleChecks(b *testing.B) {
	v := New()

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		v.EndpointURL("hub_endpoint", "https://huggingface.co")
		v.Range("port", 8080, 1, 65535)
		v.OneOf("cache_backend", "memory", []string{"memory", "redis", "none"})
		v.Clear()
	}
}

// BenchmarkValidatorWithErrors benchmarks validator with errors
func BenchmarkValidatorWithErrors(b *testing.B) {
	v := New()

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		v.NotEmpty("field", "")              // Will fail
		v.Range("port", 99999, 1, 65535)     // Will fail
		v.EndpointURL("url", "ftp://nsuper") // Will fail
		_ = v.HasErrors()
		_ = v.Errors()
		v.Clear()
	}
}
