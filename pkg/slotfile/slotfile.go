// Package slotfile provides naming and discovery utilities for the fixed-
// slot data files used by the FILE backing-store provider (C10): one file
// per provider "generation", named so that the latest generation can be
// recovered on reopen without a separate manifest.
//
// Filename Format: prefix_NNNNN_timestamp.slot
//
// Where:
//   - prefix: a configurable string identifying the provider instance.
//   - NNNNN: a zero-padded 5-digit generation number (00001, 00002, etc.).
//   - timestamp: a nanosecond-precision Unix timestamp for uniqueness.
//   - .slot: a fixed file extension.
//
// Example filenames:
//
//	backing_00001_1678881234567890123.slot
//	backing_00042_1678881298765432109.slot
package slotfile

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"
)

const extension = ".slot"

// GetLatestSlotFileInfo discovers and analyzes the most recent slot file in
// the specified directory. It performs a search of the slot directory,
// identifies the file with the highest generation number, and returns
// detailed information about that file.
//
// Returns:
//   - uint64: the generation ID of the latest slot file (1 if none exist).
//   - os.FileInfo: file metadata for the latest slot file (nil if none exist).
//   - error: detailed error information if any operation fails.
func GetLatestSlotFileInfo(dataDir, slotDir, prefix string) (uint64, os.FileInfo, error) {
	if dataDir == "" || slotDir == "" || prefix == "" {
		return 0, nil, fmt.Errorf("all parameters (dataDir, slotDir, prefix) must be non-empty")
	}

	lastSlotPath, err := GetLatestSlotFileName(dataDir, slotDir, prefix)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to discover latest slot file: %w", err)
	}

	if lastSlotPath == "" {
		return 1, nil, nil
	}

	slotID, err := ParseSlotFileID(lastSlotPath, prefix)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to parse slot file ID from %s: %w", lastSlotPath, err)
	}

	fileInfo, err := GetFileInfo(lastSlotPath)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to retrieve file info for %s: %w", lastSlotPath, err)
	}

	return slotID, fileInfo, nil
}

// GetLatestSlotFileName searches the slot directory and identifies the file
// with the highest generation ID. This implements a lexicographic sorting
// strategy that works because slot filenames use zero-padded IDs and
// monotonically increasing timestamps.
//
// Returns:
//   - string: full path to the slot file with the highest ID (empty if none found).
//   - error: detailed error if directory reading fails.
func GetLatestSlotFileName(dataDir, slotDir, prefix string) (string, error) {
	if dataDir == "" || slotDir == "" || prefix == "" {
		return "", fmt.Errorf("all parameters (dataDir, slotDir, prefix) must be non-empty")
	}

	searchPattern := filepath.Join(dataDir, slotDir, prefix+"*"+extension)

	matchingFiles, err := filepath.Glob(searchPattern)
	if err != nil {
		return "", fmt.Errorf("failed to read slot directory with pattern %s: %w", searchPattern, err)
	}

	if len(matchingFiles) == 0 {
		return "", nil
	}

	slices.Sort(matchingFiles)
	return matchingFiles[len(matchingFiles)-1], nil
}

// GenerateSlotFileName creates a properly formatted filename for a new slot
// file generation.
func GenerateSlotFileName(id uint64, prefix string) string {
	if prefix == "" {
		return fmt.Sprintf("INVALID_PREFIX_%05d_%d%s", id, time.Now().UnixNano(), extension)
	}

	timestamp := time.Now().UnixNano()
	return fmt.Sprintf("%s_%05d_%d%s", prefix, id, timestamp, extension)
}

// ParseSlotFileID extracts the generation ID from a slot filename.
func ParseSlotFileID(fullPath, prefix string) (uint64, error) {
	_, filename := filepath.Split(fullPath)

	if !strings.HasPrefix(filename, prefix) {
		return 0, fmt.Errorf("filename %s does not start with expected prefix %s", filename, prefix)
	}

	withoutPrefix := strings.TrimPrefix(filename, prefix)
	withoutExtension := strings.TrimSuffix(withoutPrefix, extension)

	parts := strings.Split(withoutExtension, "_")
	if len(parts) < 3 {
		return 0, fmt.Errorf("filename %s has unexpected format, expected prefix_ID_timestamp%s", filename, extension)
	}

	idStr := parts[1]
	id, err := strconv.ParseUint(idStr, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse slot file ID '%s' as integer: %w", idStr, err)
	}

	return id, nil
}

// GetFileInfo safely retrieves file system metadata for a given path.
func GetFileInfo(filePath string) (os.FileInfo, error) {
	file, err := os.OpenFile(filePath, os.O_RDONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open file %s: %w", filePath, err)
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to get file info for %s: %w", filePath, err)
	}

	return stat, nil
}
