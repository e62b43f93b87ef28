// package formatter exports import results to various formats (CSV, Markdown, plain text)
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/tunebridge/tunebridge/internal/models"
	"github.com/tunebridge/tunebridge/internal/shared"
)

// ExportToCSV converts a PlaylistImport to CSV with one row per track:
// ID, Name, Artist, Album, Duration, Status, MatchedID
func ExportToCSV(playlistImport *models.PlaylistImport) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"ID", "Name", "Artist", "Album", "Duration", "Status", "MatchedID"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, track := range playlistImport.Tracks {
		matchedID := ""
		if track.Matched != nil {
			matchedID = track.Matched.TrackID
		}
		record := []string{
			track.ID,
			track.Name,
			track.Artist,
			track.Album,
			strconv.Itoa(track.Duration),
			track.Status.String(),
			matchedID,
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// ExportToMarkdown converts a PlaylistImport to Markdown with optional cover image
func ExportToMarkdown(playlistImport *models.PlaylistImport, imageFilename string) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("# %s\n\n", playlistImport.SourcePlaylist.Name))

	if imageFilename != "" {
		buf.WriteString(fmt.Sprintf("![Cover](%s)\n\n", imageFilename))
	}

	buf.WriteString(fmt.Sprintf("**Source**: %s\n", playlistImport.SourcePlaylist.Service))
	if playlistImport.DestinationPlaylist != nil {
		buf.WriteString(fmt.Sprintf("**Destination**: %s (%s)\n",
			playlistImport.DestinationPlaylist.Name, playlistImport.DestinationPlaylist.Service))
	}

	found := 0
	for _, track := range playlistImport.Tracks {
		if track.Status == models.StatusFound {
			found++
		}
	}
	buf.WriteString(fmt.Sprintf("**Tracks**: %d/%d imported\n\n", found, len(playlistImport.Tracks)))

	buf.WriteString("## Tracks\n\n")
	for i, track := range playlistImport.Tracks {
		duration := shared.FormatDuration(track.Duration)
		albumPart := ""
		if track.Album != "" {
			albumPart = fmt.Sprintf(" (%s)", track.Album)
		}
		marker := statusMarker(track.Status)
		buf.WriteString(fmt.Sprintf("%d. %s %s - %s%s [%s]\n", i+1, marker, track.Artist, track.Name, albumPart, duration))
	}

	return buf.Bytes(), nil
}

// ExportToText converts a PlaylistImport to plain text
func ExportToText(playlistImport *models.PlaylistImport) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("Playlist: %s\n", playlistImport.SourcePlaylist.Name))
	buf.WriteString(fmt.Sprintf("Tracks: %d\n\n", len(playlistImport.Tracks)))

	for i, track := range playlistImport.Tracks {
		buf.WriteString(fmt.Sprintf("%d. %s %s - %s\n", i+1, statusMarker(track.Status), track.Artist, track.Name))
	}

	return buf.Bytes(), nil
}

func statusMarker(status models.TrackStatus) string {
	switch status {
	case models.StatusFound:
		return "[x]"
	case models.StatusUnprocessed:
		return "[ ]"
	default:
		return "[!]"
	}
}

// DownloadImage downloads an image from the given URL and returns the raw bytes
func DownloadImage(url string) ([]byte, error) {
	if url == "" {
		return nil, fmt.Errorf("empty URL provided")
	}

	client := &http.Client{
		Timeout: 30 * time.Second,
	}

	resp, err := client.Get(url)
	if err != nil {
		return nil, fmt.Errorf("failed to download image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to download image: status %d", resp.StatusCode)
	}

	imageData, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read image data: %w", err)
	}

	return imageData, nil
}

// ToMetadataJSON generates a JSON representation of the source playlist metadata (without tracks)
func ToMetadataJSON(playlist models.Playlist) ([]byte, error) {
	return shared.MarshalJSON(playlist, true)
}

// CSVExportResult contains the paths of files created by WriteCSVExport
type CSVExportResult struct {
	TracksFile   string
	MetadataFile string
}

// WriteCSVExport exports an import to CSV with an accompanying metadata JSON file.
//
// Defaults to the import UUID as the base filename & creates {base}_tracks.csv and {base}_metadata.json
func WriteCSVExport(playlistImport *models.PlaylistImport, baseFilepath string) (*CSVExportResult, error) {
	if baseFilepath == "" {
		baseFilepath = playlistImport.UUID
	}

	csvData, err := ExportToCSV(playlistImport)
	if err != nil {
		return nil, fmt.Errorf("failed to generate CSV: %w", err)
	}

	tracksFile := baseFilepath + "_tracks.csv"
	if err := os.WriteFile(tracksFile, csvData, 0644); err != nil {
		return nil, fmt.Errorf("failed to write CSV file: %w", err)
	}

	metadataJSON, err := ToMetadataJSON(playlistImport.SourcePlaylist)
	if err != nil {
		return nil, fmt.Errorf("failed to generate metadata JSON: %w", err)
	}

	metadataFile := baseFilepath + "_metadata.json"
	if err := os.WriteFile(metadataFile, metadataJSON, 0644); err != nil {
		return nil, fmt.Errorf("failed to write metadata file: %w", err)
	}

	return &CSVExportResult{
		TracksFile:   tracksFile,
		MetadataFile: metadataFile,
	}, nil
}

// MarkdownExportResult contains information about files created by WriteMarkdownExport
type MarkdownExportResult struct {
	Directory  string
	Files      []string
	CoverImage string
}

// WriteMarkdownExport exports an import to Markdown in a dedicated directory.
//
// Directory name defaults to the import UUID.
// The imageURL parameter is optional - if provided, attempts to download the cover image.
// Creates a directory structure: {dir}/README.md and optionally {dir}/cover.jpg
func WriteMarkdownExport(playlistImport *models.PlaylistImport, outputDir string, imageURL string) (*MarkdownExportResult, error) {
	if outputDir == "" {
		outputDir = playlistImport.UUID
	}

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	result := &MarkdownExportResult{
		Directory: outputDir,
		Files:     []string{},
	}

	var coverImageFilename string
	if imageURL != "" {
		imageData, err := DownloadImage(imageURL)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to download cover image: %v\n", err)
		} else {
			coverImageFilename = "cover.jpg"
			coverImagePath := fmt.Sprintf("%s/%s", outputDir, coverImageFilename)
			if err := os.WriteFile(coverImagePath, imageData, 0644); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: failed to save cover image: %v\n", err)
				coverImageFilename = ""
			} else {
				result.CoverImage = coverImagePath
				result.Files = append(result.Files, coverImagePath)
			}
		}
	}

	mdData, err := ExportToMarkdown(playlistImport, coverImageFilename)
	if err != nil {
		return nil, fmt.Errorf("failed to generate Markdown: %w", err)
	}

	mdFile := fmt.Sprintf("%s/README.md", outputDir)
	if err := os.WriteFile(mdFile, mdData, 0644); err != nil {
		return nil, fmt.Errorf("failed to write Markdown file: %w", err)
	}

	result.Files = append(result.Files, mdFile)

	return result, nil
}

// WriteTextExport exports an import to plain text.
//
// Defaults to {import UUID}_tracks.txt as the filename.
func WriteTextExport(playlistImport *models.PlaylistImport, filepath string) (string, error) {
	if filepath == "" {
		filepath = fmt.Sprintf("%s_tracks.txt", playlistImport.UUID)
	}

	textData, err := ExportToText(playlistImport)
	if err != nil {
		return "", fmt.Errorf("failed to generate text: %w", err)
	}

	if err := os.WriteFile(filepath, textData, 0644); err != nil {
		return "", fmt.Errorf("failed to write text file: %w", err)
	}

	return filepath, nil
}
