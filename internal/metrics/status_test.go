package metrics

import (
	"reflect"
	"testing"
)

func TestFlattenStatusBuckets(t *testing.T) {
	tests := []struct {
		name    string
		buckets map[string]map[string]int
		want    []StatusBucket
	}{
		{
			name:    "nil buckets",
			buckets: nil,
			want:    nil,
		},
		{
			name:    "empty buckets",
			buckets: map[string]map[string]int{},
			want:    nil,
		},
		{
			name: "single bucket",
			buckets: map[string]map[string]int{
				"navigate": {"503": 10},
			},
			want: []StatusBucket{
				{Kind: "navigate", Code: "503", Count: 10},
			},
		},
		{
			name: "multiple buckets sorted by count desc",
			buckets: map[string]map[string]int{
				"navigate": {
					"timeout": 10,
					"500":     5,
				},
				"dns": {
					"resolution": 20,
				},
			},
			want: []StatusBucket{
				{Kind: "dns", Code: "resolution", Count: 20},
				{Kind: "navigate", Code: "timeout", Count: 10},
				{Kind: "navigate", Code: "500", Count: 5},
			},
		},
		{
			name: "tie breaking by kind then code",
			buckets: map[string]map[string]int{
				"refresh": {
					"404": 10,
					"500": 10,
				},
				"acquire": {
					"error": 10,
				},
			},
			want: []StatusBucket{
				{Kind: "acquire", Code: "error", Count: 10},
				{Kind: "refresh", Code: "404", Count: 10},
				{Kind: "refresh", Code: "500", Count: 10},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FlattenStatusBuckets(tt.buckets)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("FlattenStatusBuckets() = %v, want %v", got, tt.want)
			}
		})
	}
}
