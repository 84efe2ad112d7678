package transport

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"
	"gopkg.in/yaml.v3"

	"github.com/kaitorecca/guardian-redact/internal/common"
	"github.com/kaitorecca/guardian-redact/internal/interfaces"
	"github.com/kaitorecca/guardian-redact/internal/models"
)

// Beep parameters recorded for beep treatments
const (
	BeepFrequencyHz = 800
	BeepGainDB      = -20
)

// Service moves uploads into a temp area and writes exports to the output directory.
// Exports are terminal: failures are returned to the caller and nothing is retried.
type Service struct {
	tempDir   string
	outputDir string
	maxAge    time.Duration
	schedule  string
	files     interfaces.TempFileStorage
	redactor  interfaces.PDFRedactor
	logger    arbor.ILogger
	now       func() time.Time

	mu    sync.Mutex
	cron  *cron.Cron
	inUse func() []string
}

var _ interfaces.FileTransport = (*Service)(nil)

// NewService creates the transport and its directories
func NewService(config *common.TransportConfig, files interfaces.TempFileStorage, redactor interfaces.PDFRedactor, logger arbor.ILogger) (*Service, error) {
	tempDir := config.TempDir
	if tempDir == "" {
		tempDir = filepath.Join(os.TempDir(), "guardian_redact")
	}
	outputDir := config.OutputDir
	if outputDir == "" {
		outputDir = "./exports"
	}

	for _, dir := range []string{tempDir, outputDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return &Service{
		tempDir:   tempDir,
		outputDir: outputDir,
		maxAge:    common.Duration(config.MaxAge, 24*time.Hour),
		schedule:  config.PurgeSchedule,
		files:     files,
		redactor:  redactor,
		logger:    logger,
		now:       time.Now,
	}, nil
}

// TempDir returns the directory uploads are written to
func (s *Service) TempDir() string {
	return s.tempDir
}

// PersistTemporary writes data to {unix-nanos}_{basename} in the temp directory and returns its path
func (s *Service) PersistTemporary(ctx context.Context, name string, data []byte) (string, error) {
	base := safeBaseName(name)
	if base == "" {
		return "", fmt.Errorf("file name is required")
	}

	created := s.now()
	path := filepath.Join(s.tempDir, fmt.Sprintf("%d_%s", created.UnixNano(), base))
	if err := os.WriteFile(path, data, 0600); err != nil {
		return "", fmt.Errorf("failed to write temporary file: %w", err)
	}

	if s.files != nil {
		record := &models.TempFile{
			ID:        common.NewTempFileID(),
			Name:      base,
			Path:      path,
			Size:      int64(len(data)),
			CreatedAt: created,
		}
		if err := s.files.Save(ctx, record); err != nil {
			// Untracked files would never be purged
			os.Remove(path)
			return "", err
		}
	}

	s.logger.Debug().Str("name", base).Int("bytes", len(data)).Msg("Temporary file persisted")
	return path, nil
}

// ExportDocument writes a redacted copy of the document covering only accepted suggestions
func (s *Service) ExportDocument(ctx context.Context, pathRef string, accepted []models.DocumentSuggestion, suggestedName string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if s.redactor == nil {
		return "", fmt.Errorf("no PDF redactor configured")
	}

	boxes := make([]models.Coordinates, 0, len(accepted))
	for _, sg := range accepted {
		if sg.Accepted {
			boxes = append(boxes, sg.Coordinates)
		}
	}

	outPath := filepath.Join(s.outputDir, exportName(suggestedName, pathRef, "_redacted", ".pdf"))
	if err := s.redactor.Redact(pathRef, outPath, boxes); err != nil {
		s.logger.Error().Err(err).Str("output", outPath).Msg("Document export failed")
		return "", fmt.Errorf("failed to export document: %w", err)
	}

	s.logger.Info().
		Str("output", outPath).
		Int("redactions", len(boxes)).
		Msg("Document exported")
	return outPath, nil
}

// decisionList is the YAML file written next to an exported recording
type decisionList struct {
	Source     string           `yaml:"source"`
	Output     string           `yaml:"output"`
	ExportedAt time.Time        `yaml:"exported_at"`
	Redactions []redactionEntry `yaml:"redactions"`
}

type redactionEntry struct {
	ID                string      `yaml:"id"`
	StartTime         float64     `yaml:"start_time"`
	EndTime           float64     `yaml:"end_time"`
	Action            string      `yaml:"action"`
	Applied           string      `yaml:"applied"`
	SourceDetectionID string      `yaml:"source_detection_id,omitempty"`
	Beep              *beepParams `yaml:"beep,omitempty"`
}

type beepParams struct {
	FrequencyHz int `yaml:"frequency_hz"`
	GainDB      int `yaml:"gain_db"`
}

// ExportAudio copies the recording to the output directory with a decision list
// (<name>.redactions.yaml) of the redactions to apply, ordered by start time.
func (s *Service) ExportAudio(ctx context.Context, pathRef string, actions []models.RedactionAction, outputName string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	ext := filepath.Ext(pathRef)
	outPath := filepath.Join(s.outputDir, exportName(outputName, pathRef, "_redacted", ext))
	if err := copyFile(pathRef, outPath); err != nil {
		return "", fmt.Errorf("failed to export audio: %w", err)
	}

	sorted := append([]models.RedactionAction(nil), actions...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].StartTime < sorted[j].StartTime })

	list := decisionList{
		Source:     filepath.Base(pathRef),
		Output:     filepath.Base(outPath),
		ExportedAt: s.now().UTC(),
		Redactions: make([]redactionEntry, 0, len(sorted)),
	}
	for _, a := range sorted {
		list.Redactions = append(list.Redactions, decisionFor(a))
	}

	data, err := yaml.Marshal(&list)
	if err != nil {
		return "", fmt.Errorf("failed to encode redaction list: %w", err)
	}

	listPath := strings.TrimSuffix(outPath, ext) + ".redactions.yaml"
	if err := os.WriteFile(listPath, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write redaction list: %w", err)
	}

	s.logger.Info().
		Str("output", outPath).
		Str("decisions", listPath).
		Int("redactions", len(sorted)).
		Msg("Audio exported")
	return outPath, nil
}

// decisionFor records how an action is applied; anonymize is applied as silence
func decisionFor(a models.RedactionAction) redactionEntry {
	entry := redactionEntry{
		ID:                a.ID,
		StartTime:         a.StartTime,
		EndTime:           a.EndTime,
		Action:            string(a.Action),
		Applied:           string(a.Action),
		SourceDetectionID: a.SourceDetectionID,
	}
	switch a.Action {
	case models.TreatmentBeep:
		entry.Beep = &beepParams{FrequencyHz: BeepFrequencyHz, GainDB: BeepGainDB}
	case models.TreatmentAnonymize:
		entry.Applied = string(models.TreatmentSilence)
	}
	return entry
}

// SetInUse registers the source of paths still under review. PurgeExpired never removes them.
func (s *Service) SetInUse(fn func() []string) {
	s.mu.Lock()
	s.inUse = fn
	s.mu.Unlock()
}

func (s *Service) pathsInUse() map[string]bool {
	s.mu.Lock()
	fn := s.inUse
	s.mu.Unlock()

	paths := make(map[string]bool)
	if fn == nil {
		return paths
	}
	for _, p := range fn() {
		paths[p] = true
	}
	return paths
}

// PurgeExpired removes temp files older than the configured maximum age,
// skipping files still under review
func (s *Service) PurgeExpired(ctx context.Context) (int, error) {
	if s.files == nil {
		return 0, nil
	}

	cutoff := s.now().Add(-s.maxAge)
	expired, err := s.files.ListOlderThan(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	inUse := s.pathsInUse()
	purged := 0
	for _, f := range expired {
		if inUse[f.Path] {
			s.logger.Debug().Str("path", f.Path).Msg("Expired temp file still under review, kept")
			continue
		}
		if err := os.Remove(f.Path); err != nil && !os.IsNotExist(err) {
			s.logger.Warn().Err(err).Str("path", f.Path).Msg("Failed to remove expired temp file")
			continue
		}
		if err := s.files.Delete(ctx, f.ID); err != nil {
			s.logger.Warn().Err(err).Str("id", f.ID).Msg("Failed to delete temp file record")
			continue
		}
		purged++
	}

	if purged > 0 {
		s.logger.Info().Int("purged", purged).Dur("max_age", s.maxAge).Msg("Expired temp files purged")
	}
	return purged, nil
}

// Start schedules PurgeExpired. An empty schedule disables purging.
func (s *Service) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.schedule == "" || s.cron != nil {
		return nil
	}

	c := cron.New(cron.WithSeconds())
	if _, err := c.AddFunc(s.schedule, func() {
		if _, err := s.PurgeExpired(context.Background()); err != nil {
			s.logger.Warn().Err(err).Msg("Scheduled temp file purge failed")
		}
	}); err != nil {
		return fmt.Errorf("invalid purge schedule %q: %w", s.schedule, err)
	}

	c.Start()
	s.cron = c
	s.logger.Info().Str("schedule", s.schedule).Msg("Temp file purge scheduled")
	return nil
}

// Stop halts the purge schedule and waits for a running purge
func (s *Service) Stop() {
	s.mu.Lock()
	c := s.cron
	s.cron = nil
	s.mu.Unlock()

	if c != nil {
		<-c.Stop().Done()
	}
}

func safeBaseName(name string) string {
	base := filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	if base == "." || base == "/" || base == ".." {
		return ""
	}
	return base
}

// exportName picks the output file name: the suggested name if given, else the
// source name (without its timestamp prefix) plus suffix. The extension is always ext.
func exportName(suggested, source, suffix, ext string) string {
	if name := safeBaseName(suggested); name != "" {
		if filepath.Ext(name) != ext {
			name += ext
		}
		return name
	}

	base := filepath.Base(source)
	if i := strings.IndexByte(base, '_'); i > 0 && isDigits(base[:i]) {
		base = base[i+1:]
	}
	return strings.TrimSuffix(base, filepath.Ext(base)) + suffix + ext
}

func isDigits(s string) bool {
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return s != ""
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
