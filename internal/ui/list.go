package ui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/list"
	"github.com/desertthunder/podkeep/internal/formatter"
	"github.com/desertthunder/podkeep/internal/services"
)

var (
	_ list.Item = showItem{}
	_ list.Item = episodeItem{}
)

// showItem wraps [services.Show] to implement [list.Item].
type showItem struct {
	show services.Show
}

func (i showItem) FilterValue() string { return i.show.Name }
func (i showItem) Title() string       { return i.show.Name }
func (i showItem) Description() string {
	desc := fmt.Sprintf("%d episodes", i.show.TotalEpisodes)
	if i.show.Publisher != "" {
		desc = fmt.Sprintf("%s • %s", desc, i.show.Publisher)
	}
	return desc
}

// episodeItem wraps [services.Episode] to implement [list.Item].
type episodeItem struct {
	episode services.Episode
}

func (i episodeItem) FilterValue() string { return i.episode.Name }
func (i episodeItem) Title() string {
	if i.episode.FullyPlayed {
		return "✓ " + i.episode.Name
	}
	return i.episode.Name
}
func (i episodeItem) Description() string {
	desc := i.episode.ReleaseDate
	if i.episode.DurationMS > 0 {
		desc = fmt.Sprintf("%s • %s", desc, formatter.FormatDurationMS(i.episode.DurationMS))
	}
	if i.episode.Paywalled {
		desc = fmt.Sprintf("%s • paywalled", desc)
	}
	return desc
}
