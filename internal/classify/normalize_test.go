package classify

import (
	"errors"
	"math"
	"reflect"
	"testing"

	"PulseWatch/internal/domain"
)

func TestNormalize(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		raw  domain.RawClassification
		want domain.Classification
	}{
		{
			name: "upper case label and clamped score",
			raw:  domain.RawClassification{Label: "NEGATIVE", Score: -3, Summary: " bad "},
			want: domain.Classification{Sentiment: domain.SentimentNegative, Score: -1, Topics: []string{}, Summary: "bad"},
		},
		{
			name: "unknown label defaults to neutral",
			raw:  domain.RawClassification{Label: "mixed", Score: 1.5, Summary: "s"},
			want: domain.Classification{Sentiment: domain.SentimentNeutral, Score: 1, Topics: []string{}, Summary: "s"},
		},
		{
			name: "topics truncated and summary placeholder",
			raw:  domain.RawClassification{Label: "positive", Score: 0.2, Topics: []string{"a", "b", "c", "d", "e", "f", "g"}},
			want: domain.Classification{Sentiment: domain.SentimentPositive, Score: 0.2, Topics: []string{"a", "b", "c", "d", "e"}, Summary: MissingSummary},
		},
		{
			name: "nan score",
			raw:  domain.RawClassification{Label: "neutral", Score: math.NaN(), Summary: "s"},
			want: domain.Classification{Sentiment: domain.SentimentNeutral, Score: 0, Topics: []string{}, Summary: "s"},
		},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := Normalize(tc.raw); !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("got %+v, want %+v", got, tc.want)
			}
		})
	}
}

func TestDecodeResponse(t *testing.T) {
	t.Parallel()

	fenced := "```json\n{\"sentiment\":\"negative\",\"sentiment_score\":-0.7,\"key_topics\":[\"corruption\"],\"summary\":\"Critical.\"}\n```"
	raw, err := DecodeResponse(fenced)
	if err != nil {
		t.Fatalf("decode fenced: %v", err)
	}
	if raw.Label != "negative" || raw.Score != -0.7 || !reflect.DeepEqual(raw.Topics, []string{"corruption"}) || raw.Summary != "Critical." {
		t.Fatalf("unexpected %+v", raw)
	}

	prose, err := DecodeResponse(`Sure! {"sentiment":"positive","key_topics":"not-a-list"} hope that helps`)
	if err != nil {
		t.Fatalf("decode prose: %v", err)
	}
	if prose.Label != "positive" || prose.Topics != nil || prose.Score != 0 {
		t.Fatalf("unexpected %+v", prose)
	}
}

func TestDecodeResponseMalformed(t *testing.T) {
	t.Parallel()

	for _, input := range []string{"", "no json here", "{\"sentiment\": "} {
		if _, err := DecodeResponse(input); !errors.Is(err, domain.ErrMalformedResponse) {
			t.Fatalf("%q: expected malformed error, got %v", input, err)
		}
	}
}

func TestRegistryResolve(t *testing.T) {
	t.Parallel()

	registry := NewRegistry()
	registry.Register(&scriptedClassifier{})

	if _, err := registry.Resolve("scripted"); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if _, err := registry.Resolve("missing"); err == nil {
		t.Fatalf("expected error for missing provider")
	}
	if names := registry.Names(); !reflect.DeepEqual(names, []string{"scripted"}) {
		t.Fatalf("names = %v", names)
	}
}
