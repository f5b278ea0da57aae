package generate

import (
	"context"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/tmc/langchaingo/llms"
)

const (
	// SampleRate 是朗读音频的采样率（Hz）。
	SampleRate = 24000
	// Channels 是声道数。
	Channels      = 1
	bitsPerSample = 16
)

// ErrPlaybackFailed 表示朗读失败，具体原因包装在错误链中。
var ErrPlaybackFailed = errors.New("朗读失败")

// AudioChunk 是一段解码后的 PCM16 音频，Start 为它在播放时间线上的起点。
type AudioChunk struct {
	Index    int           `json:"index"`
	Samples  []int16       `json:"-"`
	Start    time.Duration `json:"start"`
	Duration time.Duration `json:"duration"`
}

// Narrator 请求模型朗读日记文本，并把流式返回的 base64 音频块排成连续播放的时间线。
type Narrator struct {
	model llms.Model
	opts  []llms.CallOption
}

// NewNarrator 创建朗读服务，opts 会附加到每一次调用。
func NewNarrator(model llms.Model, opts ...llms.CallOption) *Narrator {
	return &Narrator{model: model, opts: opts}
}

// Narrate 朗读 text，把每个音频块依次写入 chunks，结束（含失败）时关闭 chunks。
// 每一块紧接在上一块结束处开始播放。
func (n *Narrator) Narrate(ctx context.Context, text string, chunks chan<- AudioChunk) error {
	defer close(chunks)
	if n == nil || n.model == nil {
		return fmt.Errorf("%w: 未配置模型", ErrPlaybackFailed)
	}

	log := Logger()
	dec := &pcmDecoder{}
	var sched scheduler
	emitted := 0

	send := func(ctx context.Context, samples []int16) error {
		if len(samples) == 0 {
			return nil
		}
		chunk := sched.place(emitted, samples)
		log.Debug("generate: audio chunk", "index", chunk.Index, "samples", len(samples), "start", chunk.Start)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case chunks <- chunk:
			emitted++
			return nil
		}
	}
	emit := func(ctx context.Context, payload []byte) error {
		samples, err := dec.decode(payload)
		if err != nil {
			return err
		}
		return send(ctx, samples)
	}

	opts := append([]llms.CallOption{llms.WithStreamingFunc(emit)}, n.opts...)
	resp, err := n.model.GenerateContent(ctx, []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeHuman, text),
	}, opts...)
	if err != nil {
		log.Warn("generate: narration failed", "err", err)
		return fmt.Errorf("%w: %v", ErrPlaybackFailed, err)
	}

	// 不支持流式的模型把完整音频放在回复内容里
	if !dec.received && resp != nil && len(resp.Choices) > 0 {
		if err := emit(ctx, []byte(resp.Choices[0].Content)); err != nil {
			return fmt.Errorf("%w: %v", ErrPlaybackFailed, err)
		}
	}
	tail, err := dec.flush()
	if err == nil {
		err = send(ctx, tail)
	}
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPlaybackFailed, err)
	}
	if emitted == 0 {
		return fmt.Errorf("%w: 没有收到音频数据", ErrPlaybackFailed)
	}
	log.Info("generate: narration ready", "chunks", emitted, "duration", sched.next)
	return nil
}

// scheduler 记录下一块音频的开始时间。
type scheduler struct {
	next time.Duration
}

func (s *scheduler) place(index int, samples []int16) AudioChunk {
	d := samplesDuration(len(samples))
	chunk := AudioChunk{Index: index, Samples: samples, Start: s.next, Duration: d}
	s.next += d
	return chunk
}

func samplesDuration(n int) time.Duration {
	return time.Duration(n/Channels) * time.Second / SampleRate
}

// pcmDecoder 把流式 base64 载荷解码为小端 PCM16 采样。
// 块边界可能切开 base64 四字符组或 PCM 采样，未成组的字符与奇数字节都留到下一块。
type pcmDecoder struct {
	pending  string
	carry    []byte
	received bool
}

func (d *pcmDecoder) decode(payload []byte) ([]int16, error) {
	text := d.pending + strings.Join(strings.Fields(string(payload)), "")
	if text != "" {
		d.received = true
	}
	n := len(text) / 4 * 4
	d.pending = text[n:]
	raw, err := decodeQuartets(text[:n])
	if err != nil {
		return nil, err
	}
	return d.samples(raw), nil
}

// flush 解码流结束时剩余的不足四个字符（无填充的尾组）。
func (d *pcmDecoder) flush() ([]int16, error) {
	if d.pending == "" {
		return nil, nil
	}
	raw, err := base64.RawStdEncoding.DecodeString(d.pending)
	d.pending = ""
	if err != nil {
		return nil, fmt.Errorf("音频块 base64 解码失败: %w", err)
	}
	return d.samples(raw), nil
}

// decodeQuartets 解码完整的四字符组。带填充的组结束一段编码，之后可以接新的一段。
func decodeQuartets(text string) ([]byte, error) {
	var raw []byte
	start := 0
	for i := 0; i < len(text); i += 4 {
		if !strings.Contains(text[i:i+4], "=") && i+4 < len(text) {
			continue
		}
		b, err := base64.StdEncoding.DecodeString(text[start : i+4])
		if err != nil {
			return nil, fmt.Errorf("音频块 base64 解码失败: %w", err)
		}
		raw = append(raw, b...)
		start = i + 4
	}
	return raw, nil
}

func (d *pcmDecoder) samples(raw []byte) []int16 {
	if len(d.carry) > 0 {
		raw = append(d.carry, raw...)
		d.carry = nil
	}
	if len(raw)%2 == 1 {
		d.carry = []byte{raw[len(raw)-1]}
		raw = raw[:len(raw)-1]
	}
	out := make([]int16, len(raw)/2)
	for i := range out {
		out[i] = int16(binary.LittleEndian.Uint16(raw[2*i:]))
	}
	return out
}

// Collect 读取通道中的全部音频块。
func Collect(chunks <-chan AudioChunk) []AudioChunk {
	var out []AudioChunk
	for c := range chunks {
		out = append(out, c)
	}
	return out
}

// WriteWAV 按时间线顺序把音频块写成 24kHz 单声道 16 位 WAV。
func WriteWAV(w io.Writer, chunks []AudioChunk) error {
	total := 0
	for _, c := range chunks {
		total += len(c.Samples)
	}
	dataSize := uint32(total * bitsPerSample / 8)
	blockAlign := uint16(Channels * bitsPerSample / 8)

	header := []any{
		[4]byte{'R', 'I', 'F', 'F'},
		36 + dataSize,
		[4]byte{'W', 'A', 'V', 'E'},
		[4]byte{'f', 'm', 't', ' '},
		uint32(16),
		uint16(1), // PCM
		uint16(Channels),
		uint32(SampleRate),
		uint32(SampleRate) * uint32(blockAlign),
		blockAlign,
		uint16(bitsPerSample),
		[4]byte{'d', 'a', 't', 'a'},
		dataSize,
	}
	for _, v := range header {
		if err := binary.Write(w, binary.LittleEndian, v); err != nil {
			return fmt.Errorf("写入 WAV 头失败: %w", err)
		}
	}
	for _, c := range chunks {
		if err := binary.Write(w, binary.LittleEndian, c.Samples); err != nil {
			return fmt.Errorf("写入音频数据失败: %w", err)
		}
	}
	return nil
}
