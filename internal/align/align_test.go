package align

import (
	"testing"

	"github.com/subraAntoine/apilexia/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestAlignPreciseOverlap(t *testing.T) {
	words := []models.Word{
		{Text: "Bonjour,", StartMS: 0, EndMS: 472, Confidence: 0.9},
		{Text: "bienvenue", StartMS: 472, EndMS: 944, Confidence: 0.9},
	}
	segments := []models.SpeakerSegment{
		{Speaker: "SPEAKER_00", StartMS: 0, EndMS: 25040, Confidence: 1.0},
	}

	utterances, relabeled := Align("", words, segments, Options{})

	assert.Len(t, utterances, 1)
	assert.Equal(t, "A", utterances[0].Speaker)
	assert.Equal(t, 0, utterances[0].StartMS)
	assert.Equal(t, 25040, utterances[0].EndMS)
	assert.Equal(t, "Bonjour, bienvenue", utterances[0].Text)
	assert.Equal(t, 1.0, utterances[0].Confidence)
	assert.Equal(t, "A", relabeled[0].Speaker)
}

func TestAlignProportional(t *testing.T) {
	segments := []models.SpeakerSegment{
		{Speaker: "SPEAKER_00", StartMS: 0, EndMS: 1000, Confidence: 1.0},
		{Speaker: "SPEAKER_01", StartMS: 1000, EndMS: 3000, Confidence: 1.0},
	}

	utterances, _ := Align("un deux trois quatre", nil, segments, Options{})

	assert.Len(t, utterances, 2)
	assert.Equal(t, "un", utterances[0].Text)
	assert.Equal(t, "deux trois quatre", utterances[1].Text)
}

func TestAlignProportionalConservesWordCount(t *testing.T) {
	segments := []models.SpeakerSegment{
		{Speaker: "A", StartMS: 0, EndMS: 700, Confidence: 1},
		{Speaker: "B", StartMS: 700, EndMS: 1300, Confidence: 1},
		{Speaker: "A", StartMS: 1300, EndMS: 4000, Confidence: 1},
	}
	text := "one two three four five six seven eight nine ten eleven"

	utterances, _ := Align(text, nil, segments, Options{})

	total := 0
	for _, u := range utterances {
		if u.Text == "" {
			continue
		}
		total += len(splitFields(u.Text))
	}
	assert.Equal(t, 11, total)
}

func splitFields(s string) []string {
	var out []string
	cur := ""
	for _, r := range s {
		if r == ' ' {
			if cur != "" {
				out = append(out, cur)
				cur = ""
			}
			continue
		}
		cur += string(r)
	}
	if cur != "" {
		out = append(out, cur)
	}
	return out
}

func TestAlignProportionalEmptyText(t *testing.T) {
	segments := []models.SpeakerSegment{
		{Speaker: "A", StartMS: 0, EndMS: 1000, Confidence: 1},
		{Speaker: "B", StartMS: 1000, EndMS: 2000, Confidence: 1},
	}

	utterances, _ := Align("", nil, segments, Options{})

	assert.Len(t, utterances, 2)
	for _, u := range utterances {
		assert.Equal(t, "", u.Text)
	}
}

func TestRelabelingDeterministic(t *testing.T) {
	segments := []models.SpeakerSegment{
		{Speaker: "SPEAKER_07", StartMS: 0, EndMS: 1000},
		{Speaker: "SPEAKER_02", StartMS: 1000, EndMS: 2000},
		{Speaker: "SPEAKER_07", StartMS: 2000, EndMS: 3000},
	}

	mapping1 := RelabelMapping(segments)
	mapping2 := RelabelMapping(segments)

	assert.Equal(t, mapping1, mapping2)
	assert.Equal(t, "A", mapping1["SPEAKER_07"])
	assert.Equal(t, "B", mapping1["SPEAKER_02"])

	_, relabeled := Align("a b c", nil, segments, Options{})
	assert.Equal(t, []string{"A", "B", "A"}, []string{relabeled[0].Speaker, relabeled[1].Speaker, relabeled[2].Speaker})
}

func TestDetectOverlaps(t *testing.T) {
	segments := []models.SpeakerSegment{
		{Speaker: "A", StartMS: 0, EndMS: 2000},
		{Speaker: "B", StartMS: 1000, EndMS: 3000},
		{Speaker: "A", StartMS: 4000, EndMS: 5000},
	}

	overlaps := DetectOverlaps(segments)

	assert.Len(t, overlaps, 1)
	assert.Equal(t, 1000, overlaps[0].StartMS)
	assert.Equal(t, 2000, overlaps[0].EndMS)
	assert.Equal(t, 1000, overlaps[0].DurationMS)
	assert.ElementsMatch(t, []string{"A", "B"}, overlaps[0].Speakers)
}

func TestSpeakerStatsSumsToHundred(t *testing.T) {
	segments := []models.SpeakerSegment{
		{Speaker: "A", StartMS: 0, EndMS: 3000},
		{Speaker: "B", StartMS: 3000, EndMS: 7000},
		{Speaker: "A", StartMS: 7000, EndMS: 10000},
	}

	stats := SpeakerStats(segments)

	sum := 0.0
	for _, s := range stats {
		sum += s.Percentage
	}
	assert.InDelta(t, 100.0, sum, 0.05)
}

func TestMergeGaps(t *testing.T) {
	segments := []models.SpeakerSegment{
		{Speaker: "A", StartMS: 0, EndMS: 1000, Confidence: 0.9},
		{Speaker: "A", StartMS: 1100, EndMS: 2000, Confidence: 0.8},
		{Speaker: "B", StartMS: 2000, EndMS: 3000, Confidence: 1.0},
	}

	merged := mergeGaps(segments, 200)

	assert.Len(t, merged, 2)
	assert.Equal(t, 0, merged[0].StartMS)
	assert.Equal(t, 2000, merged[0].EndMS)
	assert.Equal(t, 0.8, merged[0].Confidence)
}

func TestFilterShort(t *testing.T) {
	segments := []models.SpeakerSegment{
		{Speaker: "A", StartMS: 0, EndMS: 100},
		{Speaker: "B", StartMS: 100, EndMS: 2000},
	}

	filtered := filterShort(segments, 500)

	assert.Len(t, filtered, 1)
	assert.Equal(t, "B", filtered[0].Speaker)
}

func TestRTTM(t *testing.T) {
	segments := []models.SpeakerSegment{
		{Speaker: "A", StartMS: 0, EndMS: 1500},
	}

	out := RTTM("audio-1", segments)

	assert.Equal(t, "SPEAKER audio-1 1 0.000 1.500 <NA> <NA> A <NA> <NA>\n", out)
}

func TestEmptySegmentsPrecisePath(t *testing.T) {
	utterances, _ := Align("text", []models.Word{{Text: "text", StartMS: 0, EndMS: 100}}, nil, Options{})
	assert.Len(t, utterances, 0)
}
