package classify

import (
	"context"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/licitaflow/compliance-cli/internal/llm"
	"github.com/licitaflow/compliance-cli/internal/model"
)

// BatchFailure records one input file that could not be processed.
type BatchFailure struct {
	Path string
	Err  error
}

// BatchResult is the outcome of classifying a set of files. Documents keep
// the input order of the files that survived the security gate.
type BatchResult struct {
	Documents []model.ClassifiedDocument
	Failures  []BatchFailure
	Usage     model.TokenUsage
}

type prepared struct {
	idx  int
	path string
	name string
	text string
}

// ClassifyBatch classifies a set of files. Validation and text extraction
// run concurrently; per-file failures are isolated into BatchResult.Failures
// so one bad file never sinks the batch. When a backend is configured, all
// text classifications go through a single CompleteBatch call and the
// backend decides between direct calls and the batch API.
func (c *Classifier) ClassifyBatch(ctx context.Context, paths []string) (*BatchResult, error) {
	if limit := c.batchLimit(); len(paths) > limit {
		return nil, eris.Errorf("classify: %d files exceed the batch limit of %d", len(paths), limit)
	}

	result := &BatchResult{}
	if len(paths) == 0 {
		return result, nil
	}

	var (
		mu    sync.Mutex
		ready []prepared
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.workers())

	for i, path := range paths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			if err := c.files.ValidateFile(path); err != nil {
				zap.L().Warn("classify: rejected file",
					zap.String("file", filepath.Base(path)),
					zap.Error(err),
				)
				mu.Lock()
				result.Failures = append(result.Failures, BatchFailure{Path: path, Err: err})
				mu.Unlock()
				return nil
			}
			text := c.extractText(gctx, path)
			mu.Lock()
			ready = append(ready, prepared{idx: i, path: path, name: filepath.Base(path), text: text})
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(ready, func(i, j int) bool { return ready[i].idx < ready[j].idx })

	responses := c.completeAll(ctx, ready)

	for _, p := range ready {
		doc := c.resolveBatchDoc(p, responses, &result.Usage)
		doc.TextContent = p.text
		c.attachExpiration(&doc, p.text)
		result.Documents = append(result.Documents, doc)
	}

	zap.L().Info("classify: batch complete",
		zap.Int("documents", len(result.Documents)),
		zap.Int("failures", len(result.Failures)),
	)
	return result, nil
}

// completeAll sends one request per file with text through the backend.
// Any failure degrades to rules, so errors only log.
func (c *Classifier) completeAll(ctx context.Context, ready []prepared) map[string]*llm.Response {
	if c.backend == nil {
		return nil
	}

	var items []llm.BatchItem
	for _, p := range ready {
		if strings.TrimSpace(p.text) == "" {
			continue
		}
		items = append(items, llm.BatchItem{ID: strconv.Itoa(p.idx), Request: c.request(p.name, p.text)})
	}
	if len(items) == 0 {
		return nil
	}

	responses, err := c.backend.CompleteBatch(ctx, items)
	if err != nil {
		zap.L().Warn("classify: batch completion failed, falling back to rules", zap.Error(err))
		return nil
	}
	return responses
}

func (c *Classifier) resolveBatchDoc(p prepared, responses map[string]*llm.Response, usage *model.TokenUsage) model.ClassifiedDocument {
	if strings.TrimSpace(p.text) == "" {
		return c.classifyFilename(p.name, p.path)
	}

	if resp := responses[strconv.Itoa(p.idx)]; resp != nil {
		usage.Add(resp.Usage)
		doc, err := parseClassification(p.name, p.path, resp.Text)
		if err == nil {
			return doc
		}
		zap.L().Warn("classify: unparseable classification, falling back to content rules",
			zap.String("file", p.name),
			zap.Error(err),
		)
	}
	return c.classifyContent(p.name, p.path, p.text)
}
