package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"lessonmedia/internal/app"
	"lessonmedia/internal/config"
	"lessonmedia/internal/pipeline"
	"lessonmedia/internal/store"
)

const usage = `用法：
  lessonmedia [-config config.toml]                 交互式生成教案与多模态素材
  lessonmedia [-config config.toml] serve           启动HTTP服务
  lessonmedia [-config config.toml] regen <prompt.json>  根据已保存的提示词重新生成素材`

var stageLines = map[pipeline.Stage]string{
	pipeline.StagePlan:    "[1/4] 正在生成教案并存入统一库...",
	pipeline.StageExtract: "[2/4] 正在解析课文...",
	pipeline.StagePrompts: "[3/4] 正在生成提示词并存入统一库...",
	pipeline.StageMedia:   "[4/4] 正在生成多模态素材...",
}

func main() {
	configPath := flag.String("config", "", "配置文件路径，默认读取 $LESSON_CONFIG 或 ./config.toml")
	flag.Usage = func() { fmt.Fprintln(os.Stderr, usage) }
	flag.Parse()

	if err := run(*configPath, flag.Args()); err != nil {
		fmt.Fprintf(os.Stderr, "\n❌ 程序错误：%v\n", err)
		os.Exit(1)
	}
}

func run(configPath string, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	closeLog, err := config.InitLogging(cfg.Log, os.Stderr)
	if err != nil {
		return err
	}
	defer closeLog()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cmd := ""
	if len(args) > 0 {
		cmd = args[0]
	}
	switch cmd {
	case "":
		return interactive(ctx, cfg, os.Stdin, os.Stdout)
	case "serve":
		return serve(ctx, cfg)
	case "regen":
		if len(args) < 2 {
			return errors.New("regen 需要提示词文件路径")
		}
		return regen(ctx, cfg, args[1], os.Stdout)
	default:
		flag.Usage()
		return fmt.Errorf("未知命令 %q", cmd)
	}
}

func interactive(ctx context.Context, cfg *config.Config, in io.Reader, out io.Writer) error {
	fmt.Fprintln(out, "\n========== 国际中文教学多模态素材生成系统 ==========")
	reader := bufio.NewReader(in)
	level, content, err := readLessonInput(reader, out)
	if err != nil {
		return err
	}

	a, err := app.New(ctx, cfg, pipeline.WithStageHook(func(s pipeline.Stage) {
		fmt.Fprintln(out, stageLines[s])
	}))
	if err != nil {
		return err
	}

	runResult, err := a.Coordinator.Run(ctx, level, content)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, "\n========== 运行结果 ==========")
	fmt.Fprint(out, runResult.Summary())
	return nil
}

// readLessonInput 读取学生等级（为空时重新输入）和以单独一行END结束的多行教学内容
func readLessonInput(r *bufio.Reader, out io.Writer) (level, content string, err error) {
	for {
		fmt.Fprint(out, "请输入学生汉语水平（如：一级 / 二级 / 三级 / 中级 / 高级）：")
		line, err := r.ReadString('\n')
		level = strings.TrimSpace(line)
		if level != "" {
			break
		}
		if err != nil {
			return "", "", fmt.Errorf("读取学生水平: %w", err)
		}
		fmt.Fprintln(out, "⚠️ 学生水平不能为空，请重新输入。")
	}

	fmt.Fprintln(out, "\n请输入教学内容：")
	fmt.Fprintln(out, "👉 可以是【话题】（如：在中国餐馆点菜）")
	fmt.Fprintln(out, "👉 也可以是【完整课文文本】")
	fmt.Fprintln(out, "👉 输入完成后，单独输入一行 END 结束")

	var lines []string
	for {
		line, err := r.ReadString('\n')
		trimmed := strings.TrimRight(line, "\r\n")
		if strings.EqualFold(strings.TrimSpace(trimmed), "END") {
			break
		}
		if trimmed != "" || err == nil {
			lines = append(lines, trimmed)
		}
		if err != nil {
			break
		}
	}
	content = strings.TrimSpace(strings.Join(lines, "\n"))
	if content == "" {
		return "", "", errors.New("教学内容不能为空")
	}
	return level, content, nil
}

func serve(ctx context.Context, cfg *config.Config) error {
	a, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: a.Router(),
	}

	errCh := make(chan error, 1)
	go func() {
		logrus.Infof("服务器启动在 %s", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("启动服务器失败: %w", err)
	case <-ctx.Done():
	}
	logrus.Info("关闭服务器...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("服务器关闭失败: %w", err)
	}
	logrus.Info("服务器已关闭")
	return nil
}

func regen(ctx context.Context, cfg *config.Config, path string, out io.Writer) error {
	rec, err := store.LoadPrompt(path)
	if err != nil {
		return err
	}
	a, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "正在根据 %s 重新生成%s素材...\n", path, rec.Metadata.Task)
	runResult, err := a.Coordinator.Replay(ctx, rec)
	if err != nil {
		return err
	}
	fmt.Fprint(out, runResult.Summary())
	return nil
}
