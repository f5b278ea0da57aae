// Package generate 通过 langchaingo 调用外部生成式服务，为日记生成插图与朗读音频。
// 两类服务都按不透明的异步协作方处理：失败统一归为一种错误，不做重试。
package generate

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/tmc/langchaingo/llms"
)

// ErrGenerationFailed 表示插图生成失败，具体原因包装在错误链中。
var ErrGenerationFailed = errors.New("插图生成失败")

// IllustrationRequest 是一次插图请求。
type IllustrationRequest struct {
	Title string
	Body  string
	// Reference 是可选的参考图片（例如孩子自己画的草图）。
	Reference     []byte
	ReferenceMIME string
}

// IllustrationResult 是异步请求的结果，Ref 为 URL 或 data: URI。
type IllustrationResult struct {
	Ref string
	Err error
}

// Illustrator 请求模型根据日记标题与正文生成一张插图。
type Illustrator struct {
	model llms.Model
	opts  []llms.CallOption
}

// NewIllustrator 创建插图服务，opts 会附加到每一次调用（例如 llms.WithModel）。
func NewIllustrator(model llms.Model, opts ...llms.CallOption) *Illustrator {
	return &Illustrator{model: model, opts: opts}
}

var refPattern = regexp.MustCompile(`(?:https?://|data:image/)[^\s"'<>()\[\]]+`)

// Prompt 组装发给模型的提示词。
func Prompt(req IllustrationRequest) string {
	var b strings.Builder
	b.WriteString("아이가 쓴 그림일기에 어울리는 크레파스 느낌의 그림을 한 장 그려 주세요. ")
	b.WriteString("글자는 넣지 말고, 결과 이미지의 URL 하나만 답해 주세요.\n")
	if t := strings.TrimSpace(req.Title); t != "" {
		fmt.Fprintf(&b, "제목: %s\n", t)
	}
	fmt.Fprintf(&b, "내용: %s", strings.TrimSpace(req.Body))
	return b.String()
}

// Illustrate 同步生成插图，返回图片引用。
func (il *Illustrator) Illustrate(ctx context.Context, req IllustrationRequest) (string, error) {
	if il == nil || il.model == nil {
		return "", fmt.Errorf("%w: 未配置模型", ErrGenerationFailed)
	}
	parts := []llms.ContentPart{llms.TextPart(Prompt(req))}
	if len(req.Reference) > 0 {
		mime := req.ReferenceMIME
		if mime == "" {
			mime = "image/png"
		}
		parts = append(parts, llms.BinaryPart(mime, req.Reference))
	}

	log := Logger()
	log.Debug("generate: requesting illustration", "title", req.Title, "reference", len(req.Reference) > 0)

	resp, err := il.model.GenerateContent(ctx, []llms.MessageContent{
		{Role: llms.ChatMessageTypeHuman, Parts: parts},
	}, il.opts...)
	if err != nil {
		log.Warn("generate: illustration request failed", "err", err)
		return "", fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}
	if resp == nil || len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: 模型没有返回内容", ErrGenerationFailed)
	}
	ref := ExtractRef(resp.Choices[0].Content)
	if ref == "" {
		log.Warn("generate: no image reference in response")
		return "", fmt.Errorf("%w: 回复中没有图片地址", ErrGenerationFailed)
	}
	log.Info("generate: illustration ready")
	return ref, nil
}

// Start 在后台生成插图，结果写入只含一个元素的通道后关闭。
func (il *Illustrator) Start(ctx context.Context, req IllustrationRequest) <-chan IllustrationResult {
	out := make(chan IllustrationResult, 1)
	go func() {
		defer close(out)
		ref, err := il.Illustrate(ctx, req)
		out <- IllustrationResult{Ref: ref, Err: err}
	}()
	return out
}

// ExtractRef 从模型回复中取出第一个图片 URL 或 data: URI。
func ExtractRef(content string) string {
	return strings.TrimRight(refPattern.FindString(content), ".,;")
}
