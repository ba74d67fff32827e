// Package corpus discovers clinical note samples and their companion
// annotation files in a samples directory.
package corpus

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const (
	// TextExt is the extension of sample notes.
	TextExt = ".txt"

	// PredSuffix marks a predictions file: note.txt -> note_pred.json.
	PredSuffix = "_pred"
)

// goldExts are tried in order when looking for a sample's gold file.
var goldExts = []string{".json", ".yaml", ".yml"}

// Sample is one note and the paths of its companion files. GoldPath and
// PredPath are empty when the file does not exist.
type Sample struct {
	ID       string
	TextPath string
	GoldPath string
	PredPath string
}

// HasGold reports whether a gold file was found.
func (s Sample) HasGold() bool { return s.GoldPath != "" }

// HasPredictions reports whether a predictions file was found.
func (s Sample) HasPredictions() bool { return s.PredPath != "" }

// PredictionsPath is where predictions for the sample live (or will be
// written), whether or not the file exists yet.
func (s Sample) PredictionsPath() string {
	return PredictionsPathFor(s.TextPath)
}

// PredictionsPathFor returns the predictions path for a note path.
func PredictionsPathFor(textPath string) string {
	stem := strings.TrimSuffix(textPath, filepath.Ext(textPath))
	return stem + PredSuffix + ".json"
}

// Discover lists the samples in dir, sorted by file name. Notes whose stem
// ends in the predictions suffix are not samples.
func Discover(dir string) ([]Sample, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read samples directory: %w", err)
	}

	var samples []Sample
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), TextExt) {
			continue
		}
		stem := strings.TrimSuffix(e.Name(), filepath.Ext(e.Name()))
		if strings.HasSuffix(stem, PredSuffix) {
			continue
		}

		textPath := filepath.Join(dir, e.Name())
		s := Sample{ID: e.Name(), TextPath: textPath}
		for _, ext := range goldExts {
			if p := filepath.Join(dir, stem+ext); fileExists(p) {
				s.GoldPath = p
				break
			}
		}
		if p := PredictionsPathFor(textPath); fileExists(p) {
			s.PredPath = p
		}
		samples = append(samples, s)
	}

	sort.Slice(samples, func(i, j int) bool { return samples[i].ID < samples[j].ID })
	return samples, nil
}

// ReadText loads a note as UTF-8 text.
func ReadText(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.ToValidUTF8(string(data), "�"), nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
