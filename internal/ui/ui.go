package ui

import (
	"context"
	"fmt"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/tunebridge/tunebridge/internal/importer"
	"github.com/tunebridge/tunebridge/internal/models"
	"github.com/tunebridge/tunebridge/internal/services"
)

// ViewState represents the current view in the TUI.
type ViewState int

const (
	PlaylistListView ViewState = iota
	ConfirmView
	ImportView
	ResultView
)

// ImportStarter builds a ready-to-run import manager from the user's
// selections.
type ImportStarter func(selections []models.PlaylistSelection) (*importer.Manager, error)

// importEvent bridges manager callbacks into the bubbletea loop.
type importEvent struct {
	track  *models.Track
	err    error
	done   bool
	runErr error
}

type playlistsFetchedMsg struct {
	playlists []models.Playlist
	err       error
}

type selectionsBuiltMsg struct {
	selections []models.PlaylistSelection
	err        error
}

type importEventMsg importEvent

// Model represents the TUI application state.
type Model struct {
	ctx    context.Context
	view   ViewState
	source services.SourceService
	start  ImportStarter

	width  int
	height int

	playlistList list.Model
	playlists    []models.Playlist
	selected     map[string]bool
	selections   []models.PlaylistSelection

	manager   *importer.Manager
	events    chan importEvent
	lastTrack *models.Track
	notice    error
	runErr    error

	err  error
	help help.Model
	keys keyMap
}

// NewModel creates a new TUI model with the provided dependencies.
func NewModel(ctx context.Context, source services.SourceService, start ImportStarter) *Model {
	return &Model{
		ctx:      ctx,
		view:     PlaylistListView,
		source:   source,
		start:    start,
		selected: map[string]bool{},
		help:     help.New(),
		keys:     newKeyMap(),
	}
}

// Init initializes the TUI by fetching playlists from the source service.
func (m *Model) Init() tea.Cmd {
	return m.fetchPlaylists()
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		if m.playlistList.Width() == 0 {
			m.playlistList.SetSize(msg.Width-4, msg.Height-8)
		}
		return m, nil

	case tea.KeyMsg:
		switch m.view {
		case PlaylistListView:
			return m.handlePlaylistListKeys(msg)
		case ConfirmView:
			return m.handleConfirmKeys(msg)
		case ImportView:
			return m.handleImportKeys(msg)
		case ResultView:
			return m.handleResultKeys(msg)
		}

	case playlistsFetchedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, tea.Quit
		}
		m.playlists = msg.playlists
		items := make([]list.Item, len(msg.playlists))
		for i, pl := range msg.playlists {
			items[i] = playlistItem{playlist: pl}
		}
		m.playlistList = list.New(items, list.NewDefaultDelegate(), 0, 0)
		m.playlistList.Title = "Source Playlists"
		m.playlistList.SetSize(m.width-4, m.height-8)
		return m, nil

	case selectionsBuiltMsg:
		if msg.err != nil {
			m.err = msg.err
			m.view = PlaylistListView
			return m, nil
		}
		m.selections = msg.selections
		m.view = ConfirmView
		return m, nil

	case importEventMsg:
		return m.handleImportEvent(importEvent(msg))
	}

	if m.view == PlaylistListView {
		var cmd tea.Cmd
		m.playlistList, cmd = m.playlistList.Update(msg)
		return m, cmd
	}

	return m, nil
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	if m.err != nil && m.view != ResultView {
		return styles.err.Render(fmt.Sprintf("Error: %v\n\nPress q to quit", m.err))
	}

	switch m.view {
	case PlaylistListView:
		return m.renderPlaylistList()
	case ConfirmView:
		return m.renderConfirm()
	case ImportView:
		return m.renderImport()
	case ResultView:
		return m.renderResult()
	default:
		return ""
	}
}

func (m *Model) handlePlaylistListKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.toggle):
		if item, ok := m.playlistList.SelectedItem().(playlistItem); ok {
			item.selected = !item.selected
			m.selected[item.playlist.ID] = item.selected
			return m, m.playlistList.SetItem(m.playlistList.Index(), item)
		}

	case key.Matches(msg, m.keys.enter):
		if m.countSelected() == 0 {
			// Enter with nothing toggled imports the highlighted playlist.
			if item, ok := m.playlistList.SelectedItem().(playlistItem); ok {
				m.selected[item.playlist.ID] = true
			}
		}
		if m.countSelected() > 0 {
			return m, m.buildSelections()
		}
	}

	var cmd tea.Cmd
	m.playlistList, cmd = m.playlistList.Update(msg)
	return m, cmd
}

func (m *Model) handleConfirmKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit), key.Matches(msg, m.keys.no), key.Matches(msg, m.keys.back):
		m.view = PlaylistListView
		return m, nil
	case key.Matches(msg, m.keys.yes):
		return m.startImport()
	}
	return m, nil
}

func (m *Model) handleImportKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		// Progress is persisted after every track, so quitting mid-import
		// just pauses; the run can be resumed from the CLI later.
		if m.manager != nil {
			m.manager.Pause()
		}
		return m, tea.Quit

	case key.Matches(msg, m.keys.pause):
		if m.manager != nil {
			m.manager.Pause()
		}
		return m, nil

	case key.Matches(msg, m.keys.resume):
		if m.manager != nil && m.events == nil && m.manager.State() == importer.StatePausedManual {
			return m, m.runManager()
		}
	}
	return m, nil
}

func (m *Model) handleResultKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.resume):
		if m.manager != nil && m.manager.State() == importer.StatePausedOnError {
			m.runErr = nil
			m.view = ImportView
			return m, m.runManager()
		}
	}
	return m, nil
}

func (m *Model) handleImportEvent(event importEvent) (tea.Model, tea.Cmd) {
	if event.done {
		m.events = nil
		m.runErr = event.runErr

		switch m.manager.State() {
		case importer.StatePausedManual, importer.StatePausedNoConnection:
			// Stay in the import view; the paused banner offers resume.
			return m, nil
		default:
			m.view = ResultView
			return m, nil
		}
	}

	if event.track != nil {
		m.lastTrack = event.track
		m.notice = nil
	}
	if event.err != nil {
		m.notice = event.err
	}
	return m, m.waitForEvent()
}

func (m *Model) countSelected() int {
	count := 0
	for _, ok := range m.selected {
		if ok {
			count++
		}
	}
	return count
}

func (m *Model) fetchPlaylists() tea.Cmd {
	return func() tea.Msg {
		playlists, err := m.source.Playlists(m.ctx)
		return playlistsFetchedMsg{playlists: playlists, err: err}
	}
}

// buildSelections fetches the full track list of every toggled playlist.
func (m *Model) buildSelections() tea.Cmd {
	var chosen []models.Playlist
	for _, pl := range m.playlists {
		if m.selected[pl.ID] {
			chosen = append(chosen, pl)
		}
	}

	return func() tea.Msg {
		var selections []models.PlaylistSelection
		for _, pl := range chosen {
			playlist, tracks, err := m.source.PlaylistTracks(m.ctx, pl.ID)
			if err != nil {
				return selectionsBuiltMsg{err: err}
			}
			selections = append(selections, models.PlaylistSelection{
				Playlist: *playlist,
				Tracks:   tracks,
			})
		}
		return selectionsBuiltMsg{selections: selections}
	}
}

func (m *Model) startImport() (tea.Model, tea.Cmd) {
	manager, err := m.start(m.selections)
	if err != nil {
		m.err = err
		return m, tea.Quit
	}

	m.manager = manager
	m.view = ImportView
	return m, m.runManager()
}

// runManager drives the import loop in a goroutine, forwarding every callback
// through the event channel. A final done event carries Run's return value.
func (m *Model) runManager() tea.Cmd {
	events := make(chan importEvent, 50)
	m.events = events

	go func() {
		runErr := m.manager.Run(m.ctx,
			func(track *models.Track, last bool, err error) {
				events <- importEvent{track: track, err: err}
			},
			func(playlist models.Playlist, last bool) {
				events <- importEvent{}
			})
		events <- importEvent{done: true, runErr: runErr}
		close(events)
	}()

	return m.waitForEvent()
}

func (m *Model) waitForEvent() tea.Cmd {
	events := m.events
	return func() tea.Msg {
		event, ok := <-events
		if !ok {
			return nil
		}
		return importEventMsg(event)
	}
}

func (m *Model) renderPlaylistList() string {
	helpKeys := []key.Binding{m.keys.toggle, m.keys.enter, m.keys.quit}
	helpView := m.help.ShortHelpView(helpKeys)
	return fmt.Sprintf("%s\n\n%s", m.playlistList.View(), helpView)
}

func (m *Model) renderConfirm() string {
	trackCount := 0
	for _, selection := range m.selections {
		trackCount += len(selection.Tracks)
	}

	title := styles.title.Render(fmt.Sprintf("Import %d playlists to Apple Music?", len(m.selections)))

	info := ""
	for _, selection := range m.selections {
		info += fmt.Sprintf("\n  %s (%d tracks)", selection.Playlist.Name, len(selection.Tracks))
	}
	info += fmt.Sprintf("\n\nTotal: %d tracks\n", trackCount)

	helpKeys := []key.Binding{m.keys.yes, m.keys.no, m.keys.quit}
	helpView := m.help.ShortHelpView(helpKeys)

	return fmt.Sprintf("%s%s\n%s", title, info, helpView)
}

func (m *Model) renderImport() string {
	title := styles.title.Render("Importing Playlists")

	progress := m.manager.Progress()
	current := progress.Current()

	status := fmt.Sprintf("Playlist: %s (%d of %d)\nTracks: %d/%d",
		current.Playlist.Name,
		min(progress.PlaylistsDone+1, len(progress.Playlists)),
		len(progress.Playlists),
		progress.ProcessedTracks(), progress.TotalTracks())

	var detail string
	if m.lastTrack != nil {
		line := fmt.Sprintf("%s - %s", m.lastTrack.Artist, m.lastTrack.Name)
		switch m.lastTrack.Status {
		case models.StatusFound:
			detail = styles.ok.Render("✓ " + line)
		case models.StatusNotFound:
			detail = styles.warn.Render("✗ " + line + " (no match)")
		case models.StatusError:
			detail = styles.warn.Render("! " + line + " (error)")
		}
	}

	var banner string
	switch m.manager.State() {
	case importer.StatePausedManual:
		banner = styles.warn.Render("Paused - press r to resume")
	case importer.StatePausedNoConnection:
		banner = styles.warn.Render("Waiting for network connection...")
	default:
		if m.notice != nil {
			banner = styles.warn.Render(m.notice.Error())
		}
	}

	helpKeys := []key.Binding{m.keys.pause, m.keys.resume, m.keys.quit}
	helpView := m.help.ShortHelpView(helpKeys)

	return fmt.Sprintf("%s\n%s\n\n%s\n%s\n\n%s", title, status, detail, banner, helpView)
}

func (m *Model) renderResult() string {
	var title string
	if m.runErr != nil {
		title = styles.err.Render(fmt.Sprintf("Import halted: %v", m.runErr))
	} else {
		title = styles.ok.Render("✓ Import Complete")
	}

	var body string
	for _, playlist := range m.manager.Progress().Playlists {
		found := 0
		for _, track := range playlist.Tracks {
			if track.Status == models.StatusFound {
				found++
			}
		}
		body += fmt.Sprintf("\n%s: %d/%d tracks", playlist.Playlist.Name, found, len(playlist.Tracks))

		for _, track := range playlist.UnsuccessfulTracks() {
			body += "\n  " + styles.warn.Render(fmt.Sprintf("• %s - %s (%s)", track.Artist, track.Name, track.Status))
		}
	}

	helpKeys := []key.Binding{m.keys.quit}
	if m.manager != nil && m.manager.State() == importer.StatePausedOnError {
		helpKeys = []key.Binding{m.keys.resume, m.keys.quit}
	}
	helpView := m.help.ShortHelpView(helpKeys)

	return fmt.Sprintf("%s%s\n\n%s", title, body, helpView)
}
