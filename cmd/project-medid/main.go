package main

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/jbarry1506/project-medid/internal/deident"
	"github.com/jbarry1506/project-medid/internal/output"
	"github.com/jbarry1506/project-medid/internal/svs"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var (
	inputPath     string
	outputDir     string
	labelImageDir string
	macroImageDir string
	metadataDir   string
	renameToUUID  bool
	workers       int
)

var rootCmd = &cobra.Command{
	Use:   "project-medid",
	Short: "Redact PHI from whole-slide-image (SVS) files",
	Long: `Removes protected health information from Aperio SVS slides: the label
and macro associated images are erased in place and free-text page
descriptions are filtered against a fixed allow-list. The input file is
never modified; a redacted copy of identical length is written to the
output directory, with before/after SHA-256 digests for auditing.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		return run()
	},
}

func init() {
	rootCmd.Flags().StringVarP(&inputPath, "input", "i", "", "Input SVS file or directory of slides")
	rootCmd.Flags().StringVarP(&outputDir, "output", "o", "", "Directory for redacted slides")
	rootCmd.Flags().StringVar(&labelImageDir, "label-images", "", "Store extracted label images here, if specified")
	rootCmd.Flags().StringVar(&macroImageDir, "macro-images", "", "Store extracted macro images here, if specified")
	rootCmd.Flags().StringVar(&metadataDir, "metadata", "", "Store per-slide audit records here, if specified")
	rootCmd.Flags().BoolVar(&renameToUUID, "rename-to-uuid", false, "Name each output file after a generated UUID")
	rootCmd.Flags().IntVar(&workers, "workers", 1, "Number of slides to process concurrently")
	rootCmd.MarkFlagRequired("input")
	rootCmd.MarkFlagRequired("output")
}

func run() error {
	if workers < 1 {
		workers = 1
	}
	files, err := collectSlides(inputPath)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no SVS files found under %s", inputPath)
	}
	if err := os.MkdirAll(outputDir, os.ModePerm); err != nil {
		return fmt.Errorf("error creating output directory: %w", err)
	}

	opts := deident.Options{
		LabelImageDir: labelImageDir,
		MacroImageDir: macroImageDir,
		MetadataDir:   metadataDir,
	}
	var (
		group  errgroup.Group
		mu     sync.Mutex
		failed int
	)
	group.SetLimit(workers)
	for _, file := range files {
		file := file
		group.Go(func() error {
			result, err := deident.File(file, outputPathFor(file), opts)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failed++
				output.Printf(false, "Failed to process \033[7m%s\033[27m: %s\n", file, err)
				return nil
			}
			output.Printf(false, "Processed \033[7m%s\033[27m -> %s\n", file, result.Output)
			output.PrintForm(false, "Digest before", result.DigestBefore, 13)
			output.PrintForm(false, "Digest after", result.DigestAfter, 13)
			return nil
		})
	}
	group.Wait()
	output.Printf(false, "Redacted %d files out of %d\n", len(files)-failed, len(files))
	if failed > 0 {
		return fmt.Errorf("%d of %d files failed", failed, len(files))
	}
	return nil
}

// collectSlides returns the input itself for a file, or every supported slide
// under it for a directory.
func collectSlides(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("error retrieving information for %s: %w", path, err)
	}
	if !info.IsDir() {
		return []string{path}, nil
	}
	var files []string
	err = filepath.WalkDir(path, func(entry string, d fs.DirEntry, err error) error {
		if err != nil {
			output.Printf(false, "Encountered error while listing directory: %s\n", err)
			return nil
		}
		if d.IsDir() || !strings.EqualFold(filepath.Ext(entry), ".svs") {
			return nil
		}
		supported, err := sniffFile(entry)
		if err != nil {
			output.Printf(false, "Encountered error while probing %s: %s\n", entry, err)
			return nil
		}
		if supported {
			files = append(files, entry)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("error listing directory: %w", err)
	}
	return files, nil
}

func sniffFile(path string) (bool, error) {
	file, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer file.Close()
	return svs.Sniff(file, 0)
}

func outputPathFor(input string) string {
	if renameToUUID {
		return filepath.Join(outputDir, uuid.New().String()+filepath.Ext(input))
	}
	return filepath.Join(outputDir, "deident_"+filepath.Base(input))
}

func main() {
	output.Setup()
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
