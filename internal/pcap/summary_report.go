package pcap

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"slices"
	"strings"
)

// SummaryEntry is the summary of one recording under a directory.
type SummaryEntry struct {
	Name    string // path relative to the root
	Path    string
	Summary *SessionSummary
	Err     error // a recording that cannot be read does not stop the walk
}

// isRecording reports whether name has a pcap or pcapng extension.
func isRecording(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".pcap", ".pcapng":
		return true
	}
	return false
}

// CollectPcapFiles returns the recordings under root in lexical order,
// skipping hidden directories.
func CollectPcapFiles(root string) ([]string, error) {
	var found []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if isRecording(d.Name()) {
			found = append(found, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}
	slices.Sort(found)
	return found, nil
}

// BuildSummaryEntries summarizes every recording under root.
func BuildSummaryEntries(root string, panelPort uint16) ([]SummaryEntry, error) {
	paths, err := CollectPcapFiles(root)
	if err != nil {
		return nil, err
	}
	entries := make([]SummaryEntry, len(paths))
	for i, path := range paths {
		name, relErr := filepath.Rel(root, path)
		if relErr != nil {
			name = filepath.Base(path)
		}
		entries[i] = SummaryEntry{Name: name, Path: path}
		entries[i].Summary, entries[i].Err = SummarizeFile(path, panelPort)
	}
	return entries, nil
}
