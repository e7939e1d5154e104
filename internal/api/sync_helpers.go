package api

import (
	"math"

	"github.com/subraAntoine/apilexia/internal/backend"
	"github.com/subraAntoine/apilexia/internal/dispatch"
	"github.com/subraAntoine/apilexia/internal/models"
)

func supportedSyncFormat(filename string) bool {
	return dispatch.SupportedFormat(filename)
}

func secondsToMS(s float64) int {
	return int(math.Round(s * 1000))
}

func convertSTTWords(words []backend.STTWord) []models.Word {
	if len(words) == 0 {
		return nil
	}
	out := make([]models.Word, len(words))
	for i, w := range words {
		out[i] = models.Word{
			Text:       w.Text,
			StartMS:    secondsToMS(w.Start),
			EndMS:      secondsToMS(w.End),
			Confidence: w.Confidence,
		}
	}
	return out
}

func convertDiarizationSegments(segments []backend.DiarizationSegment) []models.SpeakerSegment {
	out := make([]models.SpeakerSegment, len(segments))
	for i, s := range segments {
		out[i] = models.SpeakerSegment{
			Speaker:    s.Speaker,
			StartMS:    secondsToMS(s.Start),
			EndMS:      secondsToMS(s.End),
			Confidence: s.Confidence,
		}
	}
	return out
}
