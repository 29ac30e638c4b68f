// =============================================================================
// SPED Toolkit - File Manager Utility
// =============================================================================
//
// This module provides file management utilities for batch processing:
//   - Input discovery (flat or recursive)
//   - Input archival after successful processing
//   - Output file naming
//   - Processing summary generation
//
// ARCHIVAL STRATEGY:
//   - An input is moved to input_archive once every job on it succeeded
//   - Failed inputs stay where they are so they can be re-run
//   - Outputs are never moved
//
// =============================================================================

package utils

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DefaultPattern matches SPED text files.
const DefaultPattern = "*.txt"

// =============================================================================
// FILE MANAGER
// =============================================================================

// FileManager handles file operations for batch runs.
type FileManager struct {
	// InputDir is the directory where SPED files are placed.
	InputDir string

	// OutputDir receives outputs and processing summaries.
	OutputDir string

	// InputArchiveDir is the directory for archived inputs.
	InputArchiveDir string

	// UseTimestampSubdirs creates date-based subdirectories in the archive.
	// Example: input_archive/2025/01/15/sped.txt
	UseTimestampSubdirs bool

	// ArchiveOnSuccess moves inputs to the archive after success.
	ArchiveOnSuccess bool
}

// NewFileManager creates a new FileManager with the specified directories.
func NewFileManager(inputDir, outputDir, inputArchiveDir string) *FileManager {
	return &FileManager{
		InputDir:        inputDir,
		OutputDir:       outputDir,
		InputArchiveDir: inputArchiveDir,
	}
}

// =============================================================================
// DIRECTORY MANAGEMENT
// =============================================================================

// EnsureDirectories creates the input and output directories, plus the
// archive directory when archival is on.
func (fm *FileManager) EnsureDirectories() error {
	dirs := []string{fm.InputDir, fm.OutputDir}
	if fm.ArchiveOnSuccess {
		dirs = append(dirs, fm.InputArchiveDir)
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return nil
}

// =============================================================================
// FILE DISCOVERY
// =============================================================================

// DiscoverInputFiles scans the input directory for files matching pattern.
//
// PARAMETERS:
//   - pattern: A glob pattern (e.g., "*.txt"). Empty means DefaultPattern.
//
// RETURNS:
//   - The matching regular files, sorted.
//   - An error if the pattern is malformed.
func (fm *FileManager) DiscoverInputFiles(pattern string) ([]string, error) {
	if pattern == "" {
		pattern = DefaultPattern
	}

	files, err := filepath.Glob(filepath.Join(fm.InputDir, pattern))
	if err != nil {
		return nil, fmt.Errorf("failed to scan input directory: %w", err)
	}

	var result []string
	for _, file := range files {
		info, err := os.Stat(file)
		if err != nil {
			continue
		}
		if info.Mode().IsRegular() {
			result = append(result, file)
		}
	}

	sort.Strings(result)
	return result, nil
}

// DiscoverInputFilesRecursive walks the input directory and returns files
// whose base name matches pattern, ignoring case. The archive directory is
// skipped when it lives inside the input directory.
func (fm *FileManager) DiscoverInputFilesRecursive(pattern string) ([]string, error) {
	if pattern == "" {
		pattern = DefaultPattern
	}
	pattern = strings.ToLower(pattern)
	if _, err := filepath.Match(pattern, ""); err != nil {
		return nil, fmt.Errorf("failed to scan input directory: %w", err)
	}

	archive, _ := filepath.Abs(fm.InputArchiveDir)

	var files []string
	err := filepath.WalkDir(fm.InputDir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() {
			if abs, _ := filepath.Abs(path); fm.InputArchiveDir != "" && abs == archive {
				return filepath.SkipDir
			}
			return nil
		}

		if ok, _ := filepath.Match(pattern, strings.ToLower(d.Name())); ok && d.Type().IsRegular() {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk input directory: %w", err)
	}

	sort.Strings(files)
	return files, nil
}

// =============================================================================
// FILE ARCHIVAL
// =============================================================================

// ArchiveInputFile moves an input file to the archive directory.
//
// RETURNS:
//   - The path to the archived file, or filePath unchanged when archival
//     is off.
//   - An error if archival fails.
func (fm *FileManager) ArchiveInputFile(filePath string) (string, error) {
	if !fm.ArchiveOnSuccess {
		return filePath, nil
	}

	archivePath := fm.getArchivePath(fm.InputArchiveDir, filePath, time.Now())

	if err := os.MkdirAll(filepath.Dir(archivePath), 0755); err != nil {
		return "", fmt.Errorf("failed to create archive directory: %w", err)
	}

	if err := os.Rename(filePath, archivePath); err != nil {
		// Rename fails across devices; fall back to copy and delete.
		if err := copyFile(filePath, archivePath); err != nil {
			return "", fmt.Errorf("failed to copy file to archive: %w", err)
		}
		if err := os.Remove(filePath); err != nil {
			return "", fmt.Errorf("failed to remove original file: %w", err)
		}
	}

	return archivePath, nil
}

// getArchivePath constructs the archive path for a file.
func (fm *FileManager) getArchivePath(archiveDir, filePath string, now time.Time) string {
	fileName := filepath.Base(filePath)

	if fm.UseTimestampSubdirs {
		return filepath.Join(
			archiveDir,
			fmt.Sprintf("%d", now.Year()),
			fmt.Sprintf("%02d", now.Month()),
			fmt.Sprintf("%02d", now.Day()),
			fileName,
		)
	}

	return filepath.Join(archiveDir, fileName)
}

// =============================================================================
// OUTPUT FILE NAMING
// =============================================================================

// GenerateOutputFileName builds an output file name from format.
//
// PARAMETERS:
//   - format: The name format. Placeholders:
//       {uuid}      - A random UUID
//       {timestamp} - Current timestamp (YYYYMMDD_HHMMSS)
//       {date}      - Current date (YYYYMMDD)
//       {time}      - Current time (HHMMSS)
//       plus one placeholder per key of params, e.g. {original}, {operation}
//   - params: Placeholder values.
//   - ext: The extension to ensure, including the dot (e.g. ".xlsx").
//
// EXAMPLE:
//   format: "{original}_{operation}_{timestamp}"
//   params: {"original": "sped_jan", "operation": "keys"}
//   output: "sped_jan_keys_20250115_143022.txt"
func GenerateOutputFileName(format string, params map[string]string, ext string) string {
	now := time.Now()

	replacements := map[string]string{
		"{uuid}":      uuid.New().String(),
		"{timestamp}": now.Format("20060102_150405"),
		"{date}":      now.Format("20060102"),
		"{time}":      now.Format("150405"),
	}
	for key, value := range params {
		replacements["{"+key+"}"] = value
	}

	result := format
	for placeholder, value := range replacements {
		result = strings.ReplaceAll(result, placeholder, value)
	}

	if ext != "" && !strings.HasSuffix(strings.ToLower(result), strings.ToLower(ext)) {
		result += ext
	}

	return result
}

// BaseName returns the file name of path without its extension.
func BaseName(path string) string {
	name := filepath.Base(path)
	return strings.TrimSuffix(name, filepath.Ext(name))
}

// =============================================================================
// PROCESSING SUMMARY
// =============================================================================

// ProcessingSummary contains summary information about a batch run.
type ProcessingSummary struct {
	StartTime  time.Time
	EndTime    time.Time
	TotalFiles int
	TotalJobs  int
	Successful int
	Failed     int
	LinesRead  int
	Archived   int
	Jobs       []JobInfo
}

// JobInfo describes one finished job.
type JobInfo struct {
	Operation   string
	InputFile   string
	OutputFile  string
	Success     bool
	Message     string
	LinesRead   int
	ProcessTime time.Duration
}

// Add records one job in the summary.
func (s *ProcessingSummary) Add(job JobInfo) {
	s.TotalJobs++
	s.LinesRead += job.LinesRead
	if job.Success {
		s.Successful++
	} else {
		s.Failed++
	}
	s.Jobs = append(s.Jobs, job)
}

// WriteSummaryLog writes a processing summary to outputDir.
//
// RETURNS:
//   - The path to the summary file.
//   - An error if writing fails.
func WriteSummaryLog(summary ProcessingSummary, outputDir string) (string, error) {
	timestamp := time.Now().Format("20060102_150405")
	summaryPath := filepath.Join(outputDir, fmt.Sprintf("processing_summary_%s.txt", timestamp))

	file, err := os.Create(summaryPath)
	if err != nil {
		return "", fmt.Errorf("failed to create summary file: %w", err)
	}
	defer file.Close()

	writer := bufio.NewWriter(file)

	duration := summary.EndTime.Sub(summary.StartTime)
	fmt.Fprintf(writer, "SPED Toolkit - Processing Summary\n"+
		"================================================================================\n\n"+
		"Run Information:\n"+
		"  Start Time:     %s\n"+
		"  End Time:       %s\n"+
		"  Duration:       %s\n\n"+
		"Statistics:\n"+
		"  Input Files:    %d\n"+
		"  Jobs:           %d\n"+
		"  Successful:     %d\n"+
		"  Failed:         %d\n"+
		"  Lines Read:     %d\n"+
		"  Archived:       %d\n\n",
		summary.StartTime.Format("2006-01-02 15:04:05"),
		summary.EndTime.Format("2006-01-02 15:04:05"),
		duration.Round(time.Millisecond).String(),
		summary.TotalFiles,
		summary.TotalJobs,
		summary.Successful,
		summary.Failed,
		summary.LinesRead,
		summary.Archived)

	writeJobs := func(title string, success bool) {
		var selected []JobInfo
		for _, job := range summary.Jobs {
			if job.Success == success {
				selected = append(selected, job)
			}
		}
		if len(selected) == 0 {
			return
		}

		writer.WriteString(title + ":\n")
		writer.WriteString("--------------------------------------------------------------------------------\n")
		for _, job := range selected {
			fmt.Fprintf(writer, "  Operation:    %s\n", job.Operation)
			fmt.Fprintf(writer, "  Input:        %s\n", job.InputFile)
			if job.OutputFile != "" {
				fmt.Fprintf(writer, "  Output:       %s\n", job.OutputFile)
			}
			fmt.Fprintf(writer, "  Result:       %s\n", strings.ReplaceAll(job.Message, "\n", " "))
			fmt.Fprintf(writer, "  Process Time: %s\n\n", job.ProcessTime.Round(time.Millisecond).String())
		}
	}
	writeJobs("Successful Jobs", true)
	writeJobs("Failed Jobs", false)

	writer.WriteString("================================================================================\n" +
		"End of Summary\n")

	if err := writer.Flush(); err != nil {
		return "", fmt.Errorf("failed to flush summary file: %w", err)
	}

	return summaryPath, nil
}

// =============================================================================
// UTILITY FUNCTIONS
// =============================================================================

// copyFile copies a file from src to dst.
func copyFile(src, dst string) error {
	sourceFile, err := os.Open(src)
	if err != nil {
		return err
	}
	defer sourceFile.Close()

	destFile, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer destFile.Close()

	if _, err := io.Copy(destFile, sourceFile); err != nil {
		return err
	}

	return destFile.Sync()
}

// FileExists checks if a file exists.
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return !os.IsNotExist(err)
}
