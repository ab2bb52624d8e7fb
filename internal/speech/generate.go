package speech

import (
	"context"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Jellypod-Inc/route-tts/internal/observe"
	"github.com/Jellypod-Inc/route-tts/pkg/audio"
	"github.com/Jellypod-Inc/route-tts/pkg/provider/tts"
	"github.com/Jellypod-Inc/route-tts/pkg/voice"
)

// segment is the internal per-block result of a grouped call. The request
// id never leaves this package.
type segment struct {
	audio     audio.Buffer
	requestID string
}

// GenerateSpeechList synthesizes blocks in order and assembles the result.
//
// Every voice is resolved before the first provider call, so an unknown
// voice fails without side effects. Blocks are then scanned left to right:
// a block joins the current group when stitching is enabled, its platform
// supports conditioning, and it shares the group's voice. Any other block
// flushes the group first. Each block's audio is followed by its own
// BufferMs of silence and, except for the last block, by
// InterBlockBufferMs. Normalization runs over the synthesized speech before
// silence is appended.
//
// The first failure aborts the call and is returned as a [*GenerationError]
// (or a [*VoiceNotFoundError] / [*UnsupportedPlatformError] during
// resolution). No partial result is returned.
func (c *Client) GenerateSpeechList(ctx context.Context, blocks []voice.SpeechBlock, opts Options) (res Result, err error) {
	if len(blocks) == 0 {
		return Result{}, ErrEmptyInput
	}
	if err := opts.Validate(); err != nil {
		return Result{}, err
	}

	voices := make([]voice.Voice, len(blocks))
	for i, b := range blocks {
		v, err := c.resolve(i, b)
		if err != nil {
			return Result{}, err
		}
		voices[i] = v
	}

	runID := newRunID()
	ctx, span := observe.StartSpan(ctx, "speech.generate_list",
		trace.WithAttributes(
			attribute.String("run.id", runID),
			attribute.Int("speech.blocks", len(blocks)),
			attribute.Bool("speech.request_stitching", opts.RequestStitching),
		),
	)
	defer func() { observe.EndSpan(span, err) }()

	start := time.Now()
	c.metrics.ActiveGenerations.Add(ctx, 1)
	defer func() {
		c.metrics.ActiveGenerations.Add(ctx, -1)
		c.metrics.GenerationDuration.Record(ctx, time.Since(start).Seconds())
	}()

	log := observe.Logger(ctx).With("run_id", runID)
	log.Debug("generation started", "blocks", len(blocks), "request_stitching", opts.RequestStitching)

	speech := make([]audio.Buffer, len(blocks))
	var group []int

	flush := func() error {
		if len(group) == 0 {
			return nil
		}
		segs, err := c.generateGrouped(ctx, blocks, voices[group[0]], group)
		if err != nil {
			return err
		}
		for k, idx := range group {
			speech[idx] = segs[k].audio
		}
		group = group[:0]
		return nil
	}

	for i, b := range blocks {
		groupable := opts.RequestStitching && voices[i].Platform.SupportsConditioning()
		if groupable && (len(group) == 0 || blocks[group[0]].VoiceID == b.VoiceID) {
			group = append(group, i)
			continue
		}
		if err := flush(); err != nil {
			return Result{}, err
		}
		if groupable {
			group = append(group, i)
			continue
		}
		buf, err := c.generateStandalone(ctx, i, b, voices[i])
		if err != nil {
			return Result{}, err
		}
		speech[i] = buf
	}
	if err := flush(); err != nil {
		return Result{}, err
	}

	if opts.NormalizeOutputs {
		if speech, err = Normalize(speech, opts.TargetLevel, opts.Tolerance); err != nil {
			return Result{}, err
		}
	}

	segments := make([]audio.Buffer, len(blocks))
	for i, buf := range speech {
		pad := blocks[i].BufferMs
		if i < len(blocks)-1 {
			pad += opts.InterBlockBufferMs
		}
		if pad > 0 {
			buf = buf.Concat(audio.SilenceMs(pad, buf.Format()))
		}
		segments[i] = buf
	}

	res = Result{RunID: runID}
	if opts.SingleOutput {
		var track audio.Buffer
		for _, s := range segments {
			track = track.Concat(s)
		}
		res.Audio = track
		span.SetAttributes(attribute.Int64("speech.length_ms", track.LengthMs()))
	} else {
		res.Segments = segments
	}

	log.Info("generation finished",
		"blocks", len(blocks),
		"single_output", opts.SingleOutput,
		"elapsed", time.Since(start),
	)
	return res, nil
}

// generateGrouped flushes one group of same-voice blocks on a conditioned
// platform. group holds indices into blocks.
//
// Call k carries the space-joined texts of the group's blocks before and
// after it (absent at the edges) and the last request ids returned so far.
func (c *Client) generateGrouped(ctx context.Context, blocks []voice.SpeechBlock, v voice.Voice, group []int) (segs []segment, err error) {
	ctx, span := observe.StartSpan(ctx, "speech.group",
		trace.WithAttributes(
			attribute.String("voice.id", v.ID),
			attribute.Int("speech.group_size", len(group)),
		),
	)
	defer func() { observe.EndSpan(span, err) }()

	texts := make([]string, len(group))
	for k, idx := range group {
		texts[k] = blocks[idx].Text
	}

	var history []string
	segs = make([]segment, 0, len(group))
	for k, idx := range group {
		b := blocks[idx]
		req := conditionedRequest(v, b.Text)
		req.PreviousText = joinTexts(texts[:k])
		req.NextText = joinTexts(texts[k+1:])
		req.PreviousRequestIDs = tts.LastRequestIDs(history)

		res, err := c.callConditioned(ctx, req)
		if err != nil {
			return nil, &GenerationError{Index: idx, Text: b.Text, VoiceID: b.VoiceID, Cause: err}
		}
		history = append(history, res.RequestID)

		buf, err := c.decoder.Decode(ctx, res.Audio, v.EffectiveFormat())
		if err != nil {
			return nil, &GenerationError{Index: idx, Text: b.Text, VoiceID: b.VoiceID, Cause: err}
		}
		segs = append(segs, segment{audio: buf, requestID: res.RequestID})
		c.metrics.RecordBlock(ctx, v.Platform.String(), "grouped")
		observe.Logger(ctx).Debug("grouped block synthesized",
			"index", idx,
			"voice", v.ID,
			"position", k,
			"request_id", res.RequestID,
			"duration", buf.Duration(),
		)
	}
	c.metrics.RecordGroupFlush(ctx, v.Platform.String())
	return segs, nil
}

// joinTexts returns nil for an empty slice so the field is omitted rather
// than sent as an empty string.
func joinTexts(texts []string) *string {
	if len(texts) == 0 {
		return nil
	}
	s := strings.Join(texts, " ")
	return &s
}
