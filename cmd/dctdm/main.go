// Command dctdm embeds and extracts payloads in baseline JPEGs using DCT
// Difference Modulation.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/steepcloud/dctdm/dctdm"
	"github.com/steepcloud/dctdm/jpeg"
)

// newLogger builds a zap.Logger that writes human-readable console output
// to stderr and JSON-encoded entries to a rotating dctdm.log file.
func newLogger(verbose bool) *zap.Logger {
	level := zap.InfoLevel
	if verbose {
		level = zap.DebugLevel
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "ts"
	fileEncoder := zapcore.NewJSONEncoder(encoderCfg)
	consoleEncoder := zapcore.NewConsoleEncoder(encoderCfg)

	fileWriter := zapcore.AddSync(&lumberjack.Logger{
		Filename:   "dctdm.log",
		MaxSize:    10, // megabytes
		MaxBackups: 3,
		MaxAge:     28, // days
	})

	core := zapcore.NewTee(
		zapcore.NewCore(consoleEncoder, zapcore.AddSync(os.Stderr), level),
		zapcore.NewCore(fileEncoder, fileWriter, level),
	)
	return zap.New(core)
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	switch os.Args[1] {
	case "embed":
		runEmbed(os.Args[2:])
	case "extract":
		runExtract(os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: dctdm <embed|extract> [flags]")
}

func runEmbed(args []string) {
	fs := flag.NewFlagSet("embed", flag.ExitOnError)
	delta := fs.Int("delta", 10, "DCTDM embedding step size")
	pairs := fs.Int("pairs-per-block", 8, "number of AC positions per luma block (K)")
	component := fs.Uint("component", 1, "target frame component id")
	skipZero := fs.Bool("skip-zero-pairs", false, "skip AC pairs that are both zero")
	passphrase := fs.String("passphrase", "", "passphrase for AES-256-GCM encryption (empty disables)")
	in := fs.String("in", "", "input JPEG path")
	out := fs.String("out", "", "output stego JPEG path")
	payloadPath := fs.String("payload", "", "path to the file to embed")
	verbose := fs.Bool("v", false, "verbose logging")
	fs.Parse(args)

	logger := newLogger(*verbose)
	defer logger.Sync()

	if *in == "" || *out == "" || *payloadPath == "" {
		fmt.Fprintln(os.Stderr, "embed requires -in, -out, and -payload")
		os.Exit(2)
	}

	cfg := dctdm.DefaultConfig()
	cfg.Delta = int32(*delta)
	cfg.PairsPerBlock = *pairs
	cfg.Component = uint8(*component)
	cfg.SkipZeroPairs = *skipZero
	if *passphrase != "" {
		cfg.Passphrase = passphrase
	}

	inFile, err := os.Open(*in)
	if err != nil {
		fail(logger, errors.Wrap(err, "opening input JPEG"))
	}
	defer inFile.Close()

	img, err := jpeg.Decode(context.Background(), inFile)
	if err != nil {
		fail(logger, errors.Wrap(err, "decoding input JPEG"))
	}

	payload, err := os.ReadFile(*payloadPath)
	if err != nil {
		fail(logger, errors.Wrap(err, "reading payload"))
	}

	engine := dctdm.NewEngine(cfg)
	if err := engine.Embed(context.Background(), img, payload); err != nil {
		fail(logger, errors.Wrap(err, "embedding payload"))
	}

	encoded, err := jpeg.Encode(context.Background(), img)
	if err != nil {
		fail(logger, errors.Wrap(err, "re-encoding stego JPEG"))
	}

	if err := os.WriteFile(*out, encoded, 0o644); err != nil {
		fail(logger, errors.Wrap(err, "writing stego JPEG"))
	}

	logger.Info("embed complete", zap.String("out", *out), zap.Int("payload_bytes", len(payload)))
	color.Green("embedded %d bytes into %s", len(payload), *out)
}

func runExtract(args []string) {
	fs := flag.NewFlagSet("extract", flag.ExitOnError)
	delta := fs.Int("delta", 10, "DCTDM embedding step size")
	pairs := fs.Int("pairs-per-block", 8, "number of AC positions per luma block (K)")
	component := fs.Uint("component", 1, "target frame component id")
	skipZero := fs.Bool("skip-zero-pairs", false, "skip AC pairs that are both zero")
	passphrase := fs.String("passphrase", "", "passphrase for AES-256-GCM decryption (empty disables)")
	in := fs.String("in", "", "input stego JPEG path")
	out := fs.String("out", "", "output path for the extracted payload")
	verbose := fs.Bool("v", false, "verbose logging")
	fs.Parse(args)

	logger := newLogger(*verbose)
	defer logger.Sync()

	if *in == "" || *out == "" {
		fmt.Fprintln(os.Stderr, "extract requires -in and -out")
		os.Exit(2)
	}

	cfg := dctdm.DefaultConfig()
	cfg.Delta = int32(*delta)
	cfg.PairsPerBlock = *pairs
	cfg.Component = uint8(*component)
	cfg.SkipZeroPairs = *skipZero
	if *passphrase != "" {
		cfg.Passphrase = passphrase
	}

	inFile, err := os.Open(*in)
	if err != nil {
		fail(logger, errors.Wrap(err, "opening stego JPEG"))
	}
	defer inFile.Close()

	img, err := jpeg.Decode(context.Background(), inFile)
	if err != nil {
		fail(logger, errors.Wrap(err, "decoding stego JPEG"))
	}

	engine := dctdm.NewEngine(cfg)
	payload, err := engine.Extract(context.Background(), img)
	if err != nil {
		fail(logger, errors.Wrap(err, "extracting payload"))
	}

	if err := os.WriteFile(*out, payload, 0o644); err != nil {
		fail(logger, errors.Wrap(err, "writing extracted payload"))
	}

	logger.Info("extract complete", zap.String("out", *out), zap.Int("payload_bytes", len(payload)))
	color.Green("extracted %d bytes to %s", len(payload), *out)
}

func fail(logger *zap.Logger, err error) {
	logger.Error("dctdm failed", zap.Error(err))
	color.Red("error: %v", err)
	os.Exit(1)
}
