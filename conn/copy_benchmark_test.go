package conn

import "testing"

func BenchmarkEncodeRow(b *testing.B) {
	row := []any{42, "some text\twith a tab", 3.14159, int64(9000000000)}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := encodeRow(row); err != nil {
			b.Fatal(err)
		}
	}
}
