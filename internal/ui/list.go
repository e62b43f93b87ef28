package ui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/list"
	"github.com/tunebridge/tunebridge/internal/models"
)

var _ list.Item = playlistItem{}

// playlistItem wraps [models.Playlist] to implement [list.Item], carrying the
// selection marker.
type playlistItem struct {
	playlist models.Playlist
	selected bool
}

func (i playlistItem) FilterValue() string { return i.playlist.Name }

func (i playlistItem) Title() string {
	marker := "[ ]"
	if i.selected {
		marker = "[x]"
	}
	return fmt.Sprintf("%s %s", marker, i.playlist.Name)
}

func (i playlistItem) Description() string {
	desc := string(i.playlist.Service)
	if i.playlist.UserID != "" {
		desc = fmt.Sprintf("%s • %s", desc, i.playlist.UserID)
	}
	return desc
}
