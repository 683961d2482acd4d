// SPDX-License-Identifier: MIT

package jobs

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/goleak"

	"github.com/ManuGH/xgcurate/internal/config"
	"github.com/ManuGH/xgcurate/internal/epg"
	"github.com/ManuGH/xgcurate/internal/source"
	"github.com/ManuGH/xgcurate/internal/telemetry"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func fixture(t *testing.T, name string) string {
	t.Helper()
	path, err := filepath.Abs(filepath.Join("testdata", name))
	require.NoError(t, err)
	return path
}

func testConfig(t *testing.T, guides ...string) config.AppConfig {
	t.Helper()
	cfg := config.Defaults()
	cfg.Playlist.URL = fixture(t, "playlist.m3u")
	for i, g := range guides {
		cfg.Guides = append(cfg.Guides, config.GuideSource{Name: []string{"a", "b", "c"}[i], URL: g})
	}
	cfg.Output.Dir = t.TempDir()
	cfg.Output.Guide = "guide.xml"
	cfg.Fetch.SpoolDir = t.TempDir()
	cfg.Filter = config.FilterConfig{
		Policy:  "include",
		Include: []string{"arabic"},
		Exclude: []string{"iran", "fm"},
	}
	cfg.Match.Identifiers = map[string]string{"MBC1.ae": "MBC.1.ae"}
	require.NoError(t, config.Validate(cfg))
	return cfg
}

type programmeRef struct {
	Channel string
	Title   string
}

// readGuide parses a written guide back into channel ids and programmes.
func readGuide(t *testing.T, path string) ([]string, []programmeRef) {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	var (
		ids   []string
		progs []programmeRef
	)
	_, err = epg.Scan(context.Background(), f, epg.Visitor{
		Channel: func(ch *epg.Channel) error {
			ids = append(ids, ch.ID)
			return nil
		},
		Programme: func(p *epg.Programme) error {
			progs = append(progs, programmeRef{Channel: p.Channel, Title: p.Titles[0].Value})
			return nil
		},
	})
	require.NoError(t, err)
	return ids, progs
}

func TestRun_CuratesPlaylistAndGuide(t *testing.T) {
	cfg := testConfig(t, fixture(t, "guide_a.xml"), fixture(t, "guide_b.xml"))

	res, err := Run(context.Background(), cfg, Options{})
	require.NoError(t, err)

	assert.NotEmpty(t, res.JobID)
	assert.Empty(t, res.Warnings)
	assert.True(t, res.GuideWritten)
	assert.Equal(t, 6, res.Playlist.Examined)
	assert.Equal(t, 4, res.Playlist.Kept)
	assert.Equal(t, 2, res.Playlist.Excluded)
	assert.Equal(t, 3, res.GuideChannels)
	assert.Equal(t, 4, res.GuideProgrammes)
	assert.Equal(t, 1, res.UnmatchedPlaylist, "Sharjah TV has no guide channel")

	require.Len(t, res.Sources, 2)
	a := res.Sources[0]
	assert.NoError(t, a.Err)
	assert.Equal(t, 4, a.Channels.Examined)
	assert.Equal(t, 2, a.Channels.Kept)
	assert.Equal(t, 1, a.Channels.Excluded, "RadioFM.eg rejected by the fm keyword")
	assert.Equal(t, 1, a.Channels.Unmatched)
	assert.Equal(t, epg.ProgrammeStats{Examined: 5, Kept: 2, Dropped: 2, Untitled: 1}, a.Programmes)
	assert.Equal(t, epg.ProgrammeStats{Examined: 2, Kept: 2}, res.Sources[1].Programmes)

	ids, progs := readGuide(t, res.GuidePath)
	assert.Equal(t, []string{"MBC.1.ae", "Dubai.One.ae", "NoorDubai.ae"}, ids)
	assert.Equal(t, []programmeRef{
		{Channel: "MBC.1.ae", Title: "Morning"},
		{Channel: "Dubai.One.ae", Title: "News A"},
		{Channel: "Dubai.One.ae", Title: "News B"},
		{Channel: "NoorDubai.ae", Title: "Quran"},
	}, progs)

	data, err := os.ReadFile(res.PlaylistPath)
	require.NoError(t, err)
	assert.Equal(t, `#EXTM3U x-tvg-url="http://old.example/epg.xml"
#EXTINF:-1 tvg-id="MBC.1.ae" group-title="Arabic",MBC 1 HD
http://s.example/mbc1
#EXTINF:-1 tvg-id="Dubai.One.ae" group-title="Arabic",Dubai One
#EXTVLCOPT:http-user-agent=VLC
http://s.example/dubai
#EXTINF:-1 tvg-id="NoorDubai.ae" group-title="Arabic",Noor Dubai
http://s.example/noor
#EXTINF:-1 tvg-id="Sharjah.ae" group-title="Arabic",Sharjah TV
http://s.example/sharjah
`, string(data))
	assert.Equal(t, int64(len(data)), res.PlaylistBytes)
}

func TestRun_NoOrphanProgrammes(t *testing.T) {
	cfg := testConfig(t, fixture(t, "guide_a.xml"), fixture(t, "guide_b.xml"))

	res, err := Run(context.Background(), cfg, Options{})
	require.NoError(t, err)

	ids, progs := readGuide(t, res.GuidePath)
	known := make(map[string]bool, len(ids))
	for _, id := range ids {
		assert.False(t, known[id], "channel %s emitted twice", id)
		known[id] = true
	}
	for _, p := range progs {
		assert.True(t, known[p.Channel], "orphan programme %q on %s", p.Title, p.Channel)
	}
}

func TestRun_SourceOrderDecidesCanonicalRecord(t *testing.T) {
	// guide_b first: its dubai.one.ae record now claims the playlist channel,
	// but the canonical id still comes from the playlist tvg-id.
	cfg := testConfig(t, fixture(t, "guide_b.xml"), fixture(t, "guide_a.xml"))

	res, err := Run(context.Background(), cfg, Options{})
	require.NoError(t, err)

	ids, progs := readGuide(t, res.GuidePath)
	assert.Equal(t, []string{"Dubai.One.ae", "NoorDubai.ae", "MBC.1.ae"}, ids)
	require.Len(t, progs, 4)
	assert.Equal(t, programmeRef{Channel: "Dubai.One.ae", Title: "News B"}, progs[0])
}

func TestRun_Deterministic(t *testing.T) {
	run := func() ([]byte, []byte) {
		cfg := testConfig(t, fixture(t, "guide_a.xml"), fixture(t, "guide_b.xml"))
		cfg.Output.Guide = "guide.xml.gz"
		res, err := Run(context.Background(), cfg, Options{})
		require.NoError(t, err)

		guide, err := os.ReadFile(res.GuidePath)
		require.NoError(t, err)
		pl, err := os.ReadFile(res.PlaylistPath)
		require.NoError(t, err)
		return guide, pl
	}

	guide1, pl1 := run()
	guide2, pl2 := run()
	assert.True(t, bytes.Equal(guide1, guide2), "guide output differs between runs")
	assert.Equal(t, string(pl1), string(pl2))
	assert.Equal(t, []byte{0x1f, 0x8b}, guide1[:2], "guide is gzip-compressed")
}

func TestRun_FailedSourceIsSkipped(t *testing.T) {
	cfg := testConfig(t, filepath.Join(t.TempDir(), "missing.xml"), fixture(t, "guide_b.xml"))

	res, err := Run(context.Background(), cfg, Options{})
	require.NoError(t, err)

	require.Len(t, res.Sources, 2)
	assert.True(t, errors.Is(res.Sources[0].Err, source.ErrUnavailable))
	assert.NoError(t, res.Sources[1].Err)
	assert.True(t, res.GuideWritten)

	ids, _ := readGuide(t, res.GuidePath)
	assert.Equal(t, []string{"Dubai.One.ae", "NoorDubai.ae"}, ids)
}

func TestRun_NotXMLTVSourceIsSkipped(t *testing.T) {
	cfg := testConfig(t, fixture(t, "playlist.m3u"), fixture(t, "guide_a.xml"))

	res, err := Run(context.Background(), cfg, Options{})
	require.NoError(t, err)
	require.Error(t, res.Sources[0].Err)
	assert.Equal(t, 2, res.GuideChannels)
}

func TestRun_AllGuidesFailKeepsPreviousGuide(t *testing.T) {
	cfg := testConfig(t, filepath.Join(t.TempDir(), "missing.xml"))
	previous := filepath.Join(cfg.Output.Dir, cfg.Output.Guide)
	require.NoError(t, os.WriteFile(previous, []byte("previous guide"), 0o644))

	res, err := Run(context.Background(), cfg, Options{})
	require.NoError(t, err)

	assert.False(t, res.GuideWritten)
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "every guide source failed")

	data, err := os.ReadFile(previous)
	require.NoError(t, err)
	assert.Equal(t, "previous guide", string(data))

	pl, err := os.ReadFile(res.PlaylistPath)
	require.NoError(t, err)
	assert.Contains(t, string(pl), `tvg-id="MBC.1.ae"`)
	assert.Equal(t, 4, res.UnmatchedPlaylist)
}

func TestRun_PlaylistUnavailableWritesNothing(t *testing.T) {
	cfg := testConfig(t, fixture(t, "guide_a.xml"))
	cfg.Playlist.URL = filepath.Join(t.TempDir(), "missing.m3u")

	_, err := Run(context.Background(), cfg, Options{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrPlaylistUnavailable))

	entries, err := os.ReadDir(cfg.Output.Dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRun_EmptyPlaylistWarns(t *testing.T) {
	cfg := testConfig(t, fixture(t, "guide_a.xml"))
	cfg.Filter.Include = []string{"nothing-matches-this"}

	res, err := Run(context.Background(), cfg, Options{})
	require.NoError(t, err)
	assert.Contains(t, res.Warnings, "playlist filter kept no channels")
	assert.Contains(t, res.Warnings, "no guide channel matched the playlist")

	ids, progs := readGuide(t, res.GuidePath)
	assert.Empty(t, ids)
	assert.Empty(t, progs)
}

func TestRun_NoProgrammesWarns(t *testing.T) {
	guide := filepath.Join(t.TempDir(), "untitled.xml")
	require.NoError(t, os.WriteFile(guide, []byte(`<tv>
  <channel id="MBC1.ae"><display-name>MBC 1</display-name></channel>
  <programme start="20260101060000 +0000" channel="MBC1.ae"><title>  </title></programme>
</tv>`), 0o644))
	cfg := testConfig(t, guide)

	res, err := Run(context.Background(), cfg, Options{})
	require.NoError(t, err)

	assert.True(t, res.GuideWritten)
	assert.Equal(t, 1, res.GuideChannels)
	assert.Zero(t, res.GuideProgrammes)
	assert.Equal(t, []string{"guide channels matched but no programme survived filtering"}, res.Warnings)
}

func TestRun_CarriesSourceInfoAndGeneratorURL(t *testing.T) {
	cfg := testConfig(t, fixture(t, "guide_b.xml"), fixture(t, "guide_a.xml"))
	cfg.Output.GeneratorURL = "https://tv.example/"

	res, err := Run(context.Background(), cfg, Options{})
	require.NoError(t, err)

	data, err := os.ReadFile(res.GuidePath)
	require.NoError(t, err)
	assert.Contains(t, string(data),
		`<tv generator-info-name="xgcurate" generator-info-url="https://tv.example/" source-info-name="Provider A" source-data-url="http://provider-a.example/epg">`)
}

func TestRun_PlaylistCommitFailureKeepsPreviousGuide(t *testing.T) {
	cfg := testConfig(t, fixture(t, "guide_a.xml"))
	previous := filepath.Join(cfg.Output.Dir, cfg.Output.Guide)
	require.NoError(t, os.WriteFile(previous, []byte("previous guide"), 0o644))

	// A non-empty directory at the playlist path makes the final rename fail.
	blocker := filepath.Join(cfg.Output.Dir, cfg.Output.Playlist)
	require.NoError(t, os.MkdirAll(filepath.Join(blocker, "keep"), 0o755))

	res, err := Run(context.Background(), cfg, Options{})
	require.Error(t, err)
	assert.False(t, res.GuideWritten)

	data, err := os.ReadFile(previous)
	require.NoError(t, err)
	assert.Equal(t, "previous guide", string(data))

	entries, err := os.ReadDir(cfg.Output.Dir)
	require.NoError(t, err)
	assert.Len(t, entries, 2, "pending files are removed")
}

func TestRun_CanceledContext(t *testing.T) {
	cfg := testConfig(t, fixture(t, "guide_a.xml"))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Run(ctx, cfg, Options{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))

	_, statErr := os.Stat(filepath.Join(cfg.Output.Dir, cfg.Output.Guide))
	assert.True(t, os.IsNotExist(statErr))
}

func gzipBytes(t *testing.T, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, err := zw.Write(data)
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestRun_HTTPSources(t *testing.T) {
	playlistBody, err := os.ReadFile(fixture(t, "playlist.m3u"))
	require.NoError(t, err)
	guideBody, err := os.ReadFile(fixture(t, "guide_a.xml"))
	require.NoError(t, err)
	guideGz := gzipBytes(t, guideBody)

	var (
		mu    sync.Mutex
		hits  = map[string]int{}
		agent string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		hits[r.URL.Path]++
		n := hits[r.URL.Path]
		agent = r.UserAgent()
		mu.Unlock()

		switch r.URL.Path {
		case "/get.php":
			_, _ = w.Write(playlistBody)
		case "/epg.xml.gz":
			if n == 1 {
				http.Error(w, "busy", http.StatusServiceUnavailable)
				return
			}
			_, _ = w.Write(guideGz)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	cfg := testConfig(t, srv.URL+"/epg.xml.gz", srv.URL+"/gone.xml")
	cfg.Playlist.URL = srv.URL + "/get.php?username=u&password=p"
	cfg.Output.GuideURL = "https://tv.example/guide.xml"

	fetcher := source.NewFetcher(source.Options{
		Dir:     cfg.Fetch.SpoolDir,
		Retries: 2,
		Backoff: time.Millisecond,
		Client:  srv.Client(),
	})
	res, err := Run(context.Background(), cfg, Options{Fetcher: fetcher})
	require.NoError(t, err)

	assert.Equal(t, 2, hits["/epg.xml.gz"], "one retry after 503")
	assert.Equal(t, source.DefaultUserAgent, agent)
	assert.Equal(t, 2, res.GuideChannels)
	assert.Error(t, res.Sources[1].Err)

	pl, err := os.ReadFile(res.PlaylistPath)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(pl), `#EXTM3U x-tvg-url="https://tv.example/guide.xml"`+"\n"))

	spools, err := os.ReadDir(cfg.Fetch.SpoolDir)
	require.NoError(t, err)
	assert.Empty(t, spools, "spool files are removed after the run")
}

type fakeRecorder struct {
	mu         sync.Mutex
	failures   map[string]int
	playlist   [4]int
	fetches    map[string]int
	artifacts  map[string]int64
	successful bool
}

func newFakeRecorder() *fakeRecorder {
	return &fakeRecorder{
		failures:  map[string]int{},
		fetches:   map[string]int{},
		artifacts: map[string]int64{},
	}
}

func (f *fakeRecorder) RecordPlaylist(examined, kept, excluded, unmatched int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.playlist = [4]int{examined, kept, excluded, unmatched}
}
func (f *fakeRecorder) RecordGuideChannels(string, map[string]int) {}
func (f *fakeRecorder) RecordMatch(string, string, int)            {}
func (f *fakeRecorder) RecordProgrammes(string, map[string]int)    {}
func (f *fakeRecorder) RecordFetch(kind, _ string, _ int64, _ time.Duration, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err != nil {
		kind += "_error"
	}
	f.fetches[kind]++
}
func (f *fakeRecorder) ObserveStage(string, time.Duration) {}
func (f *fakeRecorder) IncFailure(stage string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures[stage]++
}
func (f *fakeRecorder) RecordArtifact(artifact string, size int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.artifacts[artifact] = size
}
func (f *fakeRecorder) MarkSuccess(time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.successful = true
}

func TestRun_RecordsMetrics(t *testing.T) {
	cfg := testConfig(t, fixture(t, "guide_a.xml"), filepath.Join(t.TempDir(), "missing.xml"))
	rec := newFakeRecorder()

	res, err := Run(context.Background(), cfg, Options{Metrics: rec})
	require.NoError(t, err)

	assert.Equal(t, [4]int{6, 4, 2, 0}, rec.playlist)
	assert.Equal(t, map[string]int{"playlist": 1, "guide": 1, "guide_error": 1}, rec.fetches)
	assert.Equal(t, map[string]int{"guide": 1}, rec.failures)
	assert.Equal(t, res.GuideBytes, rec.artifacts["guide"])
	assert.Equal(t, res.PlaylistBytes, rec.artifacts["playlist"])
	assert.True(t, rec.successful)
}

func TestRun_EmitsSpans(t *testing.T) {
	exp := tracetest.NewInMemoryExporter()
	provider, err := telemetry.NewProviderWithExporter(context.Background(), telemetry.Config{
		ServiceName:  "xgcurate",
		SamplingRate: 1.0,
	}, exp)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = provider.Shutdown(context.Background())
		otel.SetTracerProvider(noop.NewTracerProvider())
	})

	cfg := testConfig(t, fixture(t, "guide_a.xml"), fixture(t, "guide_b.xml"))
	_, err = Run(context.Background(), cfg, Options{})
	require.NoError(t, err)

	counts := map[string]int{}
	for _, s := range exp.GetSpans() {
		counts[s.Name]++
	}
	assert.Equal(t, map[string]int{
		"xgcurate.run":            1,
		"xgcurate.playlist":       1,
		"xgcurate.guide.discover": 2,
		"xgcurate.guide.extract":  2,
		"xgcurate.write":          1,
	}, counts)
}
