package tasks

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/desertthunder/listsync/internal/formatter"
	"github.com/desertthunder/listsync/internal/models"
	"github.com/desertthunder/listsync/internal/shared"
)

// ExportAPI fetches lists for export. Implemented by [services.ListService].
type ExportAPI interface {
	List(ctx context.Context, listID string) (*models.GroceryList, error)
	Items(ctx context.Context, listID string) ([]models.ListItem, error)
}

// ExportOpts contains configuration for bulk list exports.
type ExportOpts struct {
	Format     formatter.Format // Export format, JSON when empty
	OutputDir  string           // Base output directory (default: lists_export_{epoch})
	NumWorkers int              // Concurrent writers (default: 5, max 10)
	RateLimit  float64          // Fetches per second (default: 5)
}

// ExportJob is one fetched list waiting to be written.
type ExportJob struct {
	ListID string
	Export *models.ListExport
}

// ListExportResult is the outcome of exporting one list.
type ListExportResult struct {
	ListID   string
	ListName string
	Items    int
	Success  bool
	Error    error
	Files    []string
}

// ExportResult summarizes a bulk export.
type ExportResult struct {
	Total           int
	Successful      int
	Failed          int
	OutputDirectory string
	ManifestPath    string
	Results         []ListExportResult
}

// Manifest converts the result into the manifest written next to the exports.
func (r *ExportResult) Manifest(f formatter.Format) *formatter.Manifest {
	m := &formatter.Manifest{
		ExportedAt: time.Now().UTC(),
		Format:     f,
		Directory:  r.OutputDirectory,
		Total:      r.Total,
		Successful: r.Successful,
		Failed:     r.Failed,
		Lists:      make([]formatter.ManifestEntry, 0, len(r.Results)),
	}
	for _, res := range r.Results {
		entry := formatter.ManifestEntry{
			ListID:   res.ListID,
			ListName: res.ListName,
			Items:    res.Items,
			Success:  res.Success,
			Files:    res.Files,
		}
		if res.Error != nil {
			entry.Error = res.Error.Error()
		}
		m.Lists = append(m.Lists, entry)
	}
	return m
}

func fetchExport(ctx context.Context, api ExportAPI, listID string) (*models.ListExport, error) {
	list, err := api.List(ctx, listID)
	if err != nil {
		return nil, err
	}
	items := list.Items
	if items == nil {
		if items, err = api.Items(ctx, listID); err != nil {
			return nil, err
		}
	}
	list.Items = nil
	return &models.ListExport{List: *list, Items: items}, nil
}

// ExportLists exports multiple lists concurrently with rate limiting and progress tracking.
//
// Fetches are sequential behind the limiter; writing happens in a worker pool.
// Failed lists are recorded in the result and the manifest without stopping the export.
func ExportLists(
	ctx context.Context,
	prog chan<- ProgressUpdate,
	api ExportAPI,
	ids []string,
	opts ExportOpts,
) (*ExportResult, error) {
	if api == nil {
		return nil, fmt.Errorf("%w: list service not initialized", shared.ErrServiceUnavailable)
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: no lists to export", shared.ErrMissingArgument)
	}

	if opts.Format == "" {
		opts.Format = formatter.FormatJSON
	}
	if opts.OutputDir == "" {
		opts.OutputDir = fmt.Sprintf("lists_export_%d", time.Now().Unix())
	}
	if opts.NumWorkers <= 0 {
		opts.NumWorkers = 5
	}
	if opts.NumWorkers > 10 {
		opts.NumWorkers = 10
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = 5.0
	}

	if err := os.MkdirAll(opts.OutputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	result := &ExportResult{
		Total:           len(ids),
		OutputDirectory: opts.OutputDir,
		Results:         make([]ListExportResult, 0, len(ids)),
	}

	limiter := rate.NewLimiter(rate.Limit(opts.RateLimit), 1)

	jobs := make(chan ExportJob, len(ids))
	results := make(chan ListExportResult, len(ids))

	var wg sync.WaitGroup
	for range opts.NumWorkers {
		wg.Add(1)
		go exportWorker(ctx, &wg, jobs, results, opts)
	}

	var fetchers sync.WaitGroup
	fetchers.Add(1)
	go func() {
		defer fetchers.Done()
		defer close(jobs)

		sendProgress(prog, fetchingListsUpdate(len(ids)))
		for i, listID := range ids {
			if ctx.Err() != nil {
				return
			}
			if err := limiter.Wait(ctx); err != nil {
				return
			}

			export, err := fetchExport(ctx, api, listID)
			if err != nil {
				results <- ListExportResult{
					ListID:   listID,
					ListName: fmt.Sprintf("Unknown (%s)", listID),
					Error:    fmt.Errorf("failed to fetch list: %w", err),
				}
				continue
			}

			jobs <- ExportJob{ListID: listID, Export: export}
			sendProgress(prog, exportingListUpdate(i+1, len(ids), export.List.Name))
		}
	}()

	go func() {
		fetchers.Wait()
		wg.Wait()
		close(results)
	}()

	completed := 0
	for res := range results {
		completed++
		result.Results = append(result.Results, res)

		if res.Success {
			result.Successful++
			sendProgress(prog, exportCompletedUpdate(completed, len(ids), res.ListName, len(res.Files)))
		} else {
			result.Failed++
			sendProgress(prog, exportFailedUpdate(completed, len(ids), res.ListName, res.Error))
		}
	}

	if err := ctx.Err(); err != nil {
		return result, fmt.Errorf("export interrupted: %w", err)
	}

	name := "export_manifest.json"
	if opts.Format == formatter.FormatMarkdown {
		name = "export_manifest.md"
	}
	manifestPath := filepath.Join(opts.OutputDir, name)
	if err := formatter.WriteManifest(result.Manifest(opts.Format), manifestPath); err != nil {
		return result, fmt.Errorf("export completed but failed to write manifest: %w", err)
	}
	result.ManifestPath = manifestPath
	sendProgress(prog, manifestUpdate(manifestPath))

	if result.Successful == 0 {
		return result, errors.New("no lists were exported")
	}
	return result, nil
}

// exportWorker writes lists from the jobs channel until it is closed.
func exportWorker(
	ctx context.Context,
	wg *sync.WaitGroup,
	jobs <-chan ExportJob,
	results chan<- ListExportResult,
	opts ExportOpts,
) {
	defer wg.Done()

	for job := range jobs {
		if ctx.Err() != nil {
			return
		}
		results <- exportSingleList(job, opts)
	}
}

// exportSingleList writes one list in the configured format.
func exportSingleList(j ExportJob, opts ExportOpts) ListExportResult {
	result := ListExportResult{
		ListID:   j.ListID,
		ListName: j.Export.List.Name,
		Items:    len(j.Export.Items),
		Files:    []string{},
	}

	files, err := formatter.WriteExport(j.Export, opts.Format, opts.OutputDir)
	if err != nil {
		result.Error = fmt.Errorf("%s export failed: %w", opts.Format, err)
		return result
	}
	result.Files = files
	result.Success = true
	return result
}
