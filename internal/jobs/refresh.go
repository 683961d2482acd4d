// SPDX-License-Identifier: MIT

package jobs

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/ManuGH/xgcurate/internal/config"
	"github.com/ManuGH/xgcurate/internal/curate"
	"github.com/ManuGH/xgcurate/internal/epg"
	xglog "github.com/ManuGH/xgcurate/internal/log"
	"github.com/ManuGH/xgcurate/internal/m3u"
	"github.com/ManuGH/xgcurate/internal/metrics"
	"github.com/ManuGH/xgcurate/internal/normalize"
	xnet "github.com/ManuGH/xgcurate/internal/platform/net"
	"github.com/ManuGH/xgcurate/internal/platform/paths"
	"github.com/ManuGH/xgcurate/internal/playlist"
	"github.com/ManuGH/xgcurate/internal/reconcile"
	"github.com/ManuGH/xgcurate/internal/source"
	"github.com/ManuGH/xgcurate/internal/telemetry"
)

// guideSource is the per-source state carried from Pass 1 to Pass 2.
type guideSource struct {
	src        source.Source
	spool      *source.Spool
	channels   *epg.SourceChannels
	programmes string // Pass 2 spool path, empty when Pass 2 failed
	result     SourceResult
}

// Run performs one curation pass: playlist, guide Pass 1, merge, guide
// Pass 2, then both artifacts. It fails only when the playlist is
// unavailable, the policy cannot be compiled or an artifact cannot be
// written. Guide source failures become warnings.
func Run(ctx context.Context, cfg config.AppConfig, opts Options) (res *Result, err error) {
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	rec := opts.Metrics
	if rec == nil {
		rec = (*metrics.Recorder)(nil)
	}

	res = &Result{JobID: uuid.NewString(), StartTime: clock()}
	ctx = xglog.ContextWithJobID(ctx, res.JobID)
	logger := xglog.WithComponentFromContext(ctx, "jobs")
	ctx = logger.WithContext(ctx)

	ctx, span := telemetry.Tracer(telemetry.TracerName).Start(ctx, "xgcurate.run")
	defer func() {
		status := "success"
		if err != nil {
			status = "failed"
		}
		span.SetAttributes(telemetry.JobAttributes(res.JobID, status)...)
		telemetry.End(span, err)
		res.Duration = clock().Sub(res.StartTime)
		rec.ObserveStage("total", res.Duration)
	}()

	logger.Info().
		Str(xglog.FieldEvent, "run.start").
		Int("guides", len(cfg.Guides)).
		Msg("starting curation run")

	res.PlaylistPath, err = paths.PlaylistPath(cfg.Output.Dir, cfg.Output.Playlist)
	if err != nil {
		return res, fmt.Errorf("playlist output: %w", err)
	}
	res.GuidePath, err = paths.GuidePath(cfg.Output.Dir, cfg.Output.Guide)
	if err != nil {
		return res, fmt.Errorf("guide output: %w", err)
	}

	norm := normalize.New(cfg.Match.NormalizeOptions())
	filter, err := curate.NewFilter(cfg.Filter.Rules(), norm)
	if err != nil {
		return res, err
	}
	exclude, err := curate.CompileKeywords(cfg.Filter.Exclude)
	if err != nil {
		return res, err
	}

	fetcher := opts.Fetcher
	if fetcher == nil {
		fetcher = source.NewFetcher(source.Options{
			Dir:           cfg.Fetch.SpoolDir,
			UserAgent:     cfg.Fetch.UserAgent,
			Retries:       cfg.Fetch.Retries,
			Rate:          cfg.Fetch.Rate,
			ClientTimeout: cfg.Fetch.Timeout,
		})
	}

	// Playlist
	stageStart := clock()
	pl, err := loadPlaylist(ctx, fetcher, cfg, rec)
	if err != nil {
		rec.IncFailure("playlist")
		return res, err
	}
	channels, stats := filter.Apply(ctx, pl.Entries)
	res.Playlist = stats
	rec.RecordPlaylist(stats.Examined, stats.Kept, stats.Excluded, stats.Unmatched)
	rec.ObserveStage("playlist", clock().Sub(stageStart))
	if len(channels) == 0 {
		res.warn("playlist filter kept no channels")
		logger.Warn().Str(xglog.FieldEvent, "playlist.empty").Msg("playlist filter kept no channels")
	}

	resolver := reconcile.New(channels, norm, cfg.Match.ResolverOptions(exclude))

	sources := make([]*guideSource, len(cfg.Guides))
	for i, g := range cfg.Guides {
		sources[i] = &guideSource{
			src:    source.Source{Name: g.Name, URL: g.URL},
			result: SourceResult{Name: g.Name},
		}
	}
	defer cleanupSources(ctx, sources)

	// Pass 1
	stageStart = clock()
	if err := discover(ctx, cfg, fetcher, resolver, sources, rec); err != nil {
		return res, err
	}
	rec.ObserveStage("discover", clock().Sub(stageStart))

	kept := epg.NewKeptSet()
	for _, gs := range sources {
		kept.Merge(gs.channels)
	}
	res.GuideChannels = len(kept.Channels())

	// Pass 2
	stageStart = clock()
	if err := extract(ctx, cfg, kept, sources, rec); err != nil {
		return res, err
	}
	rec.ObserveStage("extract", clock().Sub(stageStart))

	var (
		available  int
		programmes []string
	)
	for _, gs := range sources {
		res.Sources = append(res.Sources, gs.result)
		if gs.channels != nil {
			available++
		}
		if gs.programmes != "" {
			programmes = append(programmes, gs.programmes)
			res.GuideProgrammes += gs.result.Programmes.Kept
		}
	}

	items, unmatched := playlistItems(ctx, channels, kept, resolver)
	res.UnmatchedPlaylist = unmatched

	// Output
	stageStart = clock()
	ctx, writeSpan := telemetry.Tracer(telemetry.TracerName).Start(ctx, "xgcurate.write")
	err = writeOutputs(ctx, cfg, res, pl, items, kept, programmes, sourceHeader(sources), available)
	telemetry.End(writeSpan, err)
	if err != nil {
		rec.IncFailure("write")
		return res, err
	}
	rec.ObserveStage("write", clock().Sub(stageStart))
	rec.RecordArtifact("playlist", res.PlaylistBytes)
	if res.GuideWritten {
		rec.RecordArtifact("guide", res.GuideBytes)
		rec.MarkSuccess(clock())
	}

	if available > 0 && res.GuideChannels == 0 {
		res.warn("no guide channel matched the playlist")
		logger.Warn().Str(xglog.FieldEvent, "guide.empty").Msg("no guide channel matched the playlist")
	}
	if res.GuideWritten && res.GuideChannels > 0 && res.GuideProgrammes == 0 {
		res.warn("guide channels matched but no programme survived filtering")
		logger.Warn().
			Str(xglog.FieldEvent, "guide.no_programmes").
			Int("guide_channels", res.GuideChannels).
			Msg("guide channels matched but no programme survived filtering")
	}

	span.SetAttributes(telemetry.PlaylistAttributes(stats.Examined, stats.Kept)...)
	span.SetAttributes(telemetry.GuideAttributes(available, res.GuideChannels, int64(res.GuideProgrammes))...)

	logger.Info().
		Str(xglog.FieldEvent, "run.complete").
		Int(xglog.FieldChannels, len(items)).
		Int("guide_channels", res.GuideChannels).
		Int(xglog.FieldProgrammes, res.GuideProgrammes).
		Int("unmatched_playlist_channels", res.UnmatchedPlaylist).
		Int("warnings", len(res.Warnings)).
		Dur("duration", clock().Sub(res.StartTime)).
		Msg("curation run completed")
	return res, nil
}

func loadPlaylist(ctx context.Context, fetcher *source.Fetcher, cfg config.AppConfig, rec MetricsRecorder) (*m3u.Playlist, error) {
	ctx, span := telemetry.Tracer(telemetry.TracerName).Start(ctx, "xgcurate.playlist")
	src := source.Source{Name: "playlist", URL: cfg.Playlist.URL}
	span.SetAttributes(telemetry.SourceAttributes(src.Name, "playlist", xnet.SanitizeURL(src.URL))...)

	pl, err := func() (*m3u.Playlist, error) {
		spool, err := fetcher.Fetch(ctx, src, cfg.Fetch.PlaylistTimeout)
		if err != nil {
			rec.RecordFetch("playlist", src.Name, 0, 0, err)
			return nil, err
		}
		defer removeSpool(ctx, spool)
		rec.RecordFetch("playlist", src.Name, spool.Size, spool.Duration, nil)

		rc, err := spool.Reader()
		if err != nil {
			return nil, err
		}
		defer func() { _ = rc.Close() }()
		return m3u.Parse(rc)
	}()
	telemetry.End(span, err)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPlaylistUnavailable, err)
	}

	xglog.FromContext(ctx).Info().
		Str(xglog.FieldEvent, "playlist.loaded").
		Str(xglog.FieldURL, xnet.SanitizeURL(src.URL)).
		Int("entries", len(pl.Entries)).
		Int("malformed", pl.Malformed).
		Msg("playlist loaded")
	return pl, nil
}

// discover fetches every guide source and runs Pass 1 on it, one worker per
// source. Source failures are recorded on the source; only cancellation of
// ctx fails the stage.
func discover(ctx context.Context, cfg config.AppConfig, fetcher *source.Fetcher, resolver *reconcile.Resolver, sources []*guideSource, rec MetricsRecorder) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(parallelism(cfg, len(sources)))

	for _, gs := range sources {
		g.Go(func() error {
			err := discoverSource(gctx, cfg, fetcher, resolver, gs, rec)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				skipSource(gctx, gs, "discover", err, rec)
			}
			return nil
		})
	}
	return g.Wait()
}

func discoverSource(ctx context.Context, cfg config.AppConfig, fetcher *source.Fetcher, resolver *reconcile.Resolver, gs *guideSource, rec MetricsRecorder) (err error) {
	ctx, span := telemetry.Tracer(telemetry.TracerName).Start(ctx, "xgcurate.guide.discover")
	span.SetAttributes(telemetry.SourceAttributes(gs.src.Name, "guide", xnet.SanitizeURL(gs.src.URL))...)
	defer func() { telemetry.End(span, err) }()

	spool, err := fetcher.Fetch(ctx, gs.src, cfg.Fetch.Timeout)
	if err != nil {
		rec.RecordFetch("guide", gs.src.Name, 0, 0, err)
		return err
	}
	gs.spool = spool
	gs.result.Bytes = spool.Size
	rec.RecordFetch("guide", gs.src.Name, spool.Size, spool.Duration, nil)

	rc, err := spool.Reader()
	if err != nil {
		return err
	}
	defer func() { _ = rc.Close() }()

	found, err := epg.DiscoverChannels(ctx, rc, resolver)
	if err != nil {
		return err
	}
	found.Source = gs.src.Name
	gs.channels = found
	gs.result.Channels = found.Stats

	st := found.Stats
	rec.RecordGuideChannels(gs.src.Name, map[string]int{
		"examined":   st.Examined,
		"kept":       st.Kept,
		"malformed":  st.Malformed,
		"duplicates": st.Duplicates,
		"excluded":   st.Excluded,
		"unmatched":  st.Unmatched,
	})
	for tier, n := range st.Tiers {
		rec.RecordMatch(gs.src.Name, tier.String(), n)
	}

	ev := xglog.FromContext(ctx).Info().
		Str(xglog.FieldEvent, "guide.discovered").
		Str(xglog.FieldSource, gs.src.Name).
		Int64(xglog.FieldBytes, spool.Size).
		Int(xglog.FieldExamined, st.Examined).
		Int(xglog.FieldKept, st.Kept).
		Int("excluded", st.Excluded).
		Int("unmatched", st.Unmatched).
		Int("malformed", st.Malformed)
	for tier, n := range st.Tiers {
		ev = ev.Int("tier_"+tier.String(), n)
	}
	ev.Msg("guide channels discovered")
	return nil
}

// extract runs Pass 2 for every source that survived Pass 1, each worker
// spooling its encoded programmes to its own file.
func extract(ctx context.Context, cfg config.AppConfig, kept *epg.KeptSet, sources []*guideSource, rec MetricsRecorder) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(parallelism(cfg, len(sources)))

	for _, gs := range sources {
		if gs.channels == nil {
			continue
		}
		g.Go(func() error {
			err := extractSource(gctx, cfg, kept, gs, rec)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				skipSource(gctx, gs, "extract", err, rec)
			}
			return nil
		})
	}
	return g.Wait()
}

func extractSource(ctx context.Context, cfg config.AppConfig, kept *epg.KeptSet, gs *guideSource, rec MetricsRecorder) (err error) {
	ctx, span := telemetry.Tracer(telemetry.TracerName).Start(ctx, "xgcurate.guide.extract")
	span.SetAttributes(telemetry.SourceAttributes(gs.src.Name, "guide", "")...)
	defer func() { telemetry.End(span, err) }()

	rc, err := gs.spool.Reader()
	if err != nil {
		return err
	}
	defer func() { _ = rc.Close() }()

	out, err := os.CreateTemp(cfg.Fetch.SpoolDir, "xgcurate-*.programmes")
	if err != nil {
		return fmt.Errorf("create programme spool: %w", err)
	}
	path := out.Name()
	defer func() {
		if err != nil {
			_ = os.Remove(path)
		}
	}()

	bw := bufio.NewWriterSize(out, 64*1024)
	stats, err := epg.ExtractProgrammes(ctx, rc, kept, func(p *epg.Programme) error {
		return epg.EncodeProgramme(bw, p)
	})
	gs.result.Programmes = stats
	if err == nil {
		err = bw.Flush()
	}
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return err
	}
	gs.programmes = path

	rec.RecordProgrammes(gs.src.Name, map[string]int{
		"examined":  stats.Examined,
		"kept":      stats.Kept,
		"dropped":   stats.Dropped,
		"untitled":  stats.Untitled,
		"malformed": stats.Malformed,
	})
	xglog.FromContext(ctx).Info().
		Str(xglog.FieldEvent, "guide.extracted").
		Str(xglog.FieldSource, gs.src.Name).
		Int(xglog.FieldExamined, stats.Examined).
		Int(xglog.FieldKept, stats.Kept).
		Int("dropped", stats.Dropped).
		Int("untitled", stats.Untitled).
		Int("malformed", stats.Malformed).
		Msg("guide programmes extracted")
	return nil
}

// playlistItems pairs every kept playlist channel with its canonical id and
// counts those no guide channel resolved to.
func playlistItems(ctx context.Context, channels []curate.Channel, kept *epg.KeptSet, resolver *reconcile.Resolver) ([]playlist.Item, int) {
	logger := xglog.FromContext(ctx)

	items := make([]playlist.Item, 0, len(channels))
	unmatched := 0
	for i, ch := range channels {
		id, ok := kept.CanonicalFor(i)
		if !ok {
			unmatched++
			logger.Debug().
				Str(xglog.FieldEvent, "playlist.unmatched").
				Str("name", ch.Name).
				Str(xglog.FieldGuideID, ch.RawID).
				Msg("playlist channel has no guide channel")
			if target, found := resolver.Override(ch.RawID); found {
				id = target
			}
		}
		items = append(items, playlist.Item{Entry: ch.Entry, TvgID: id})
	}
	return items, unmatched
}

// writeOutputs stages both artifacts before replacing either. The playlist
// is committed first so a failed write never pairs a new guide with the
// previous playlist's ids.
func writeOutputs(ctx context.Context, cfg config.AppConfig, res *Result, pl *m3u.Playlist, items []playlist.Item, kept *epg.KeptSet, programmes []string, src epg.Header, available int) error {
	logger := xglog.FromContext(ctx)

	if err := os.MkdirAll(cfg.Output.Dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	var guide *stagedArtifact
	if available == 0 && len(cfg.Guides) > 0 {
		res.warn("every guide source failed; previous guide left in place")
		logger.Warn().
			Str(xglog.FieldEvent, "guide.unchanged").
			Str(xglog.FieldPath, res.GuidePath).
			Msg("every guide source failed; previous guide left in place")
	} else {
		var err error
		guide, err = stageGuide(res.GuidePath, epg.WriterOptions{
			Compress:     cfg.Output.CompressGuide(),
			Generator:    cfg.Output.Generator,
			GeneratorURL: cfg.Output.GeneratorURL,
			Source:       src,
		}, kept.Channels(), programmes)
		if err != nil {
			return err
		}
		defer guide.discard(ctx)
	}

	list, err := stagePlaylist(res.PlaylistPath, items, playlist.Options{
		Header:   pl.Header,
		GuideURL: cfg.Output.GuideURL,
	})
	if err != nil {
		return err
	}
	defer list.discard(ctx)

	if err := list.commit(ctx); err != nil {
		return fmt.Errorf("write playlist: %w", err)
	}
	res.PlaylistBytes = list.size
	logOutput(logger, "playlist", res.PlaylistPath, list.size, len(items))

	if guide != nil {
		if err := guide.commit(ctx); err != nil {
			return fmt.Errorf("write guide: %w", err)
		}
		res.GuideBytes = guide.size
		res.GuideWritten = true
		logOutput(logger, "guide", res.GuidePath, guide.size, res.GuideChannels)
	}
	return nil
}

// sourceHeader returns the root of the first source, in configured order,
// that describes its data origin.
func sourceHeader(sources []*guideSource) epg.Header {
	for _, gs := range sources {
		if gs.channels != nil && gs.channels.Header.HasSourceInfo() {
			return gs.channels.Header
		}
	}
	return epg.Header{}
}

func logOutput(logger *zerolog.Logger, artifact, path string, size int64, channels int) {
	logger.Info().
		Str(xglog.FieldEvent, "output.written").
		Str("artifact", artifact).
		Str(xglog.FieldPath, path).
		Int64(xglog.FieldBytes, size).
		Int(xglog.FieldChannels, channels).
		Msg("artifact written")
}

func skipSource(ctx context.Context, gs *guideSource, stage string, err error, rec MetricsRecorder) {
	if gs.result.Err == nil {
		gs.result.Err = err
	}
	rec.IncFailure("guide")
	ev := xglog.FromContext(ctx).Warn()
	if errors.Is(err, source.ErrUnavailable) {
		ev = ev.Bool("unavailable", true)
	}
	ev.Err(err).
		Str(xglog.FieldEvent, "source.skipped").
		Str(xglog.FieldSource, gs.src.Label()).
		Str("stage", stage).
		Msg("guide source skipped")
}

func cleanupSources(ctx context.Context, sources []*guideSource) {
	for _, gs := range sources {
		removeSpool(ctx, gs.spool)
		if gs.programmes != "" {
			if err := os.Remove(gs.programmes); err != nil && !errors.Is(err, os.ErrNotExist) {
				xglog.FromContext(ctx).Debug().Err(err).Str(xglog.FieldPath, gs.programmes).Msg("remove programme spool")
			}
		}
	}
}

func removeSpool(ctx context.Context, spool *source.Spool) {
	if err := spool.Remove(); err != nil {
		xglog.FromContext(ctx).Debug().Err(err).Str(xglog.FieldPath, spool.Path).Msg("remove source spool")
	}
}

func parallelism(cfg config.AppConfig, sources int) int {
	if cfg.Guide.Parallelism > 0 {
		return cfg.Guide.Parallelism
	}
	return max(sources, 1)
}
