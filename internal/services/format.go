package services

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/desertthunder/ytmp3/internal/models"
	"github.com/desertthunder/ytmp3/internal/shared"
)

const (
	// PreferredContainer is the only container accepted unless non-preferred containers are allowed.
	PreferredContainer = "mp4"

	// DefaultAudioBitrate is used when no format declares an audio bitrate.
	DefaultAudioBitrate = 192

	QualityHighestAudio = "highestaudio"
	QualityLowestAudio  = "lowestaudio"
	QualityHighest      = "highest"
	QualityLowest       = "lowest"
)

// Known audio bitrates (kbps) for itags whose bitrate field describes the whole stream.
var itagAudioBitrate = map[int]int{
	17: 24, 18: 96, 22: 192, 36: 32, 43: 128, 59: 128, 78: 128,
	139: 48, 140: 128, 141: 256, 171: 128, 172: 192,
	249: 48, 250: 64, 251: 160,
}

// SelectFormat filters formats to audio-bearing variants in the preferred container
// (unless allowNonPreferred) and applies the quality selector.
func SelectFormat(formats []models.Format, quality string, allowNonPreferred bool) (models.Format, error) {
	candidates := make([]models.Format, 0, len(formats))
	for _, f := range formats {
		if !f.HasAudio() {
			continue
		}
		if !allowNonPreferred && f.Container() != PreferredContainer {
			continue
		}
		candidates = append(candidates, f)
	}
	if len(candidates) == 0 {
		return models.Format{}, fmt.Errorf("%w: no audio formats available", shared.ErrNoFormat)
	}

	quality = strings.ToLower(strings.TrimSpace(quality))
	if quality == "" {
		quality = QualityHighestAudio
	}

	switch quality {
	case QualityHighestAudio:
		return rankAudio(candidates, true), nil
	case QualityLowestAudio:
		return rankAudio(candidates, false), nil
	case QualityHighest:
		return rankOverall(candidates, true), nil
	case QualityLowest:
		return rankOverall(candidates, false), nil
	}

	itag, err := strconv.Atoi(quality)
	if err != nil {
		return models.Format{}, fmt.Errorf("%w: unknown quality %q", shared.ErrNoFormat, quality)
	}
	for _, f := range candidates {
		if f.Itag == itag {
			return f, nil
		}
	}
	return models.Format{}, fmt.Errorf("%w: itag %d", shared.ErrNoFormat, itag)
}

// AudioBitrate returns the first declared audio bitrate in formats, or [DefaultAudioBitrate].
func AudioBitrate(formats []models.Format) (kbps int, declared bool) {
	for _, f := range formats {
		if f.AudioBitrate > 0 {
			return f.AudioBitrate, true
		}
	}
	return DefaultAudioBitrate, false
}

// rankAudio orders by audio bitrate, preferring audio-only variants on ties.
func rankAudio(formats []models.Format, highest bool) models.Format {
	sorted := append([]models.Format(nil), formats...)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.AudioBitrate != b.AudioBitrate {
			if highest {
				return a.AudioBitrate > b.AudioBitrate
			}
			return a.AudioBitrate < b.AudioBitrate
		}
		return !a.HasVideo && b.HasVideo
	})
	return sorted[0]
}

// rankOverall prefers muxed variants, then total bitrate.
func rankOverall(formats []models.Format, highest bool) models.Format {
	sorted := append([]models.Format(nil), formats...)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.HasVideo != b.HasVideo {
			return a.HasVideo
		}
		if highest {
			return a.Bitrate > b.Bitrate
		}
		return a.Bitrate < b.Bitrate
	})
	return sorted[0]
}

// audioBitrateFor derives kbps from the itag table or, for audio-only variants, the stream bitrate.
func audioBitrateFor(itag, bitrate, averageBitrate int, audioOnly bool) int {
	if kbps, ok := itagAudioBitrate[itag]; ok {
		return kbps
	}
	if !audioOnly {
		return 0
	}
	if averageBitrate > 0 {
		bitrate = averageBitrate
	}
	return (bitrate + 500) / 1000
}
