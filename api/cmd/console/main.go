package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/apex/log"
	"github.com/chzyer/readline"
	"github.com/joho/godotenv"

	"image-reader/api/internal/analyze"
	"image-reader/api/internal/config"
	"image-reader/api/internal/imaging"
	"image-reader/api/internal/logging"
	"image-reader/api/internal/relevance"
	"image-reader/api/internal/vision/gemini"
)

func main() {
	if err := mainImpl(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func mainImpl() error {
	imagePath := flag.String("image", "", "path to a png/jpg/jpeg/gif/bmp image")
	flag.Parse()

	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	// в консоли логи мешают ответам, поэтому только предупреждения и выше
	logger, err := logging.Setup(os.Stderr, "warn", cfg.LogFormat)
	if err != nil {
		return err
	}

	ctx := context.Background()
	engine, err := gemini.New(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
	if err != nil {
		return err
	}
	defer engine.Close()

	s := &session{
		svc:       analyze.New(relevance.New(cfg.Denylist...), engine, logger),
		maxPixels: cfg.MaxPixels,
		out:       os.Stdout,
	}
	if *imagePath != "" {
		s.loadImage(*imagePath)
	}

	rl, err := readline.New("> ")
	if err != nil {
		return err
	}
	defer func() {
		_ = rl.Close()
	}()
	fmt.Fprintln(s.out, "Ask about the image. Commands: :image <path>, :quit")
	for {
		line, err := rl.Readline()
		if err != nil { // io.EOF, Ctrl-C
			break
		}
		if !s.handle(ctx, line) {
			break
		}
	}
	return nil
}

// session держит только текущую картинку; вопросы независимы.
type session struct {
	svc       *analyze.Service
	maxPixels int
	img       *imaging.Image
	out       io.Writer
}

// handle returns false when the user asked to quit.
func (s *session) handle(ctx context.Context, line string) bool {
	line = strings.TrimSpace(line)
	cmd, arg, _ := strings.Cut(line, " ")
	switch cmd {
	case ":quit", ":q":
		return false
	case ":image":
		path := strings.TrimSpace(arg)
		if path == "" {
			fmt.Fprintln(s.out, "usage: :image <path>")
			return true
		}
		s.loadImage(path)
		return true
	}

	res, err := s.svc.Analyze(ctx, analyze.Request{Prompt: line, Image: s.img})
	if err != nil {
		out := analyze.Explain(err)
		fmt.Fprintf(s.out, "[%s] %s\n", out.Level, out.Message)
		return true
	}
	fmt.Fprintln(s.out, res.Answer)
	return true
}

func (s *session) loadImage(path string) {
	raw, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(s.out, "[error] An error occurred: %v\n", err)
		return
	}
	img, err := imaging.Load(raw, imaging.Options{MaxPixels: s.maxPixels})
	if err != nil {
		fmt.Fprintf(s.out, "[error] An error occurred: %v\n", err)
		return
	}
	s.img = img
	log.WithFields(log.Fields{"path": path, "format": img.Source}).Debug("image loaded")
	fmt.Fprintf(s.out, "Loaded %s (%dx%d, %s)\n", path, img.Width, img.Height, img.Source)
}
