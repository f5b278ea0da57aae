package main

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/ByLCY/grimilgi/diary"
	"github.com/ByLCY/grimilgi/dsl"
	"github.com/ByLCY/grimilgi/generate"
	"github.com/ByLCY/grimilgi/layout"
	"github.com/ByLCY/grimilgi/preview"
	"github.com/ByLCY/grimilgi/renderer"
	canvasrenderer "github.com/ByLCY/grimilgi/renderer/canvas"
)

const (
	illustrationName = "illustration"
	maxImageBytes    = 20 << 20
)

type config struct {
	input, output, debug string
	data                 any
	preview, cellFrames  bool
	illustrate           bool
	narrate              string
	model                string
	dpmm                 float64
	saveDir              string
}

func main() {
	input := flag.String("in", "examples/picnic.diary", ".diary 文件路径")
	output := flag.String("out", "output/picnic.pdf", "输出路径，扩展名 .pdf 或 .png")
	debug := flag.String("debug", "", "排版调试 JSON 输出路径")
	dataJSON := flag.String("data", "", "绑定到文档的 JSON 数据")
	showPreview := flag.Bool("preview", false, "在终端打印原稿纸预览")
	cellFrames := flag.Bool("cell-frames", false, "为非空格子绘制浅色底，便于检查")
	illustrate := flag.Bool("illustrate", false, "调用模型为日记生成插图")
	narrate := flag.String("narrate", "", "朗读正文并保存为 WAV 文件")
	model := flag.String("model", "", "生成服务使用的模型名")
	dpmm := flag.Float64("dpmm", 8, "PNG 输出的每毫米像素数")
	saveDir := flag.String("save", "", "把日记以 JSON 保存到该目录")
	verbose := flag.Bool("v", false, "输出生成服务的调试日志")
	flag.Parse()

	if *verbose {
		generate.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})))
	}

	var inputData any
	if *dataJSON != "" {
		if err := json.Unmarshal([]byte(*dataJSON), &inputData); err != nil {
			log.Fatalf("解析 data JSON 失败: %v", err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	cfg := config{
		input: *input, output: *output, debug: *debug,
		data:    inputData,
		preview: *showPreview, cellFrames: *cellFrames,
		illustrate: *illustrate,
		narrate:    *narrate,
		model:      *model,
		dpmm:       *dpmm,
		saveDir:    *saveDir,
	}
	if err := run(ctx, cfg); err != nil {
		log.Fatalf("生成日记失败: %v", err)
	}
	fmt.Printf("已生成：%s\n", *output)
}

// run 串联解析、生成服务、排版与渲染。
func run(ctx context.Context, cfg config) error {
	file, err := os.Open(cfg.input)
	if err != nil {
		return fmt.Errorf("无法打开日记文件 %s: %w", cfg.input, err)
	}
	defer file.Close()

	doc, err := dsl.Parse(file)
	if err != nil {
		return fmt.Errorf("解析日记文件失败: %w", err)
	}
	entry, err := diary.FromDocument(doc, cfg.data)
	if err != nil {
		return fmt.Errorf("读取日记内容失败: %w", err)
	}

	if cfg.saveDir != "" {
		if err := diary.NewStore(cfg.saveDir).Save(entry); err != nil {
			return err
		}
	}

	opts := layout.BuildOptions{Debug: layout.DebugOptions{CellFrames: cfg.cellFrames}}
	images := map[string]canvasrenderer.Resource{}
	if cfg.illustrate {
		// 插图失败只提示，不影响排版
		if blob, err := illustrate(ctx, cfg.model, entry); err != nil {
			log.Printf("插图未生成: %v", err)
		} else {
			images[illustrationName] = canvasrenderer.Resource{Bytes: blob}
			opts.Illustration = "built-in:" + illustrationName
		}
	}

	result, err := layout.Build(doc, cfg.data, opts)
	if err != nil {
		return fmt.Errorf("排版失败: %w", err)
	}

	if cfg.preview {
		fmt.Print(preview.Render(result.Grid, preview.Options{Color: true, RowNumbers: true}))
	}

	if cfg.debug != "" {
		if err := writeDebug(result, cfg.debug); err != nil {
			return err
		}
	}

	var r renderer.Renderer = canvasrenderer.NewRendererWithOptions(canvasrenderer.Options{
		BaseDir: filepath.Dir(cfg.input),
		Images:  images,
		Format:  renderer.Format(cfg.output),
		DPMM:    cfg.dpmm,
	})
	if err := os.MkdirAll(filepath.Dir(cfg.output), 0o755); err != nil {
		return fmt.Errorf("创建输出目录失败: %w", err)
	}
	out, err := r.Render(result)
	if err != nil {
		return fmt.Errorf("渲染失败: %w", err)
	}
	if err := os.WriteFile(cfg.output, out, 0o644); err != nil {
		return fmt.Errorf("写入输出文件失败: %w", err)
	}

	if cfg.narrate != "" {
		if err := narrate(ctx, cfg.model, entry.Body, cfg.narrate); err != nil {
			log.Printf("朗读未完成: %v", err)
		}
	}
	return nil
}

func newModel(name string) (llms.Model, error) {
	var opts []openai.Option
	if name != "" {
		opts = append(opts, openai.WithModel(name))
	}
	client, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("openai: %w", err)
	}
	return client, nil
}

// illustrate 生成插图并取回图片字节。
func illustrate(ctx context.Context, model string, entry diary.Entry) ([]byte, error) {
	llm, err := newModel(model)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", generate.ErrGenerationFailed, err)
	}
	res := <-generate.NewIllustrator(llm).Start(ctx, generate.IllustrationRequest{
		Title: entry.Title,
		Body:  entry.Body,
	})
	if res.Err != nil {
		return nil, res.Err
	}
	return fetchImage(ctx, res.Ref)
}

// fetchImage 取回插图字节：http(s) 地址下载，data: URI 直接解码。
func fetchImage(ctx context.Context, ref string) ([]byte, error) {
	if strings.HasPrefix(ref, "data:") {
		_, payload, ok := strings.Cut(ref, ",")
		if !ok {
			return nil, fmt.Errorf("%w: data URI 格式错误", generate.ErrGenerationFailed)
		}
		blob, err := base64.StdEncoding.DecodeString(payload)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", generate.ErrGenerationFailed, err)
		}
		return blob, nil
	}
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", generate.ErrGenerationFailed, err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: 下载插图失败: %v", generate.ErrGenerationFailed, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: 下载插图返回 %s", generate.ErrGenerationFailed, resp.Status)
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxImageBytes))
}

func narrate(ctx context.Context, model, text, path string) error {
	llm, err := newModel(model)
	if err != nil {
		return fmt.Errorf("%w: %v", generate.ErrPlaybackFailed, err)
	}
	ch := make(chan generate.AudioChunk, 16)
	errc := make(chan error, 1)
	go func() { errc <- generate.NewNarrator(llm).Narrate(ctx, text, ch) }()
	chunks := generate.Collect(ch)
	if err := <-errc; err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("创建音频目录失败: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("创建音频文件失败: %w", err)
	}
	if err := generate.WriteWAV(f, chunks); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func writeDebug(result *layout.Result, debugPath string) error {
	if err := os.MkdirAll(filepath.Dir(debugPath), 0o755); err != nil {
		return fmt.Errorf("创建调试目录失败: %w", err)
	}
	if err := layout.WriteDebugJSON(result, debugPath); err != nil {
		return fmt.Errorf("输出调试 JSON 失败: %w", err)
	}
	return nil
}
