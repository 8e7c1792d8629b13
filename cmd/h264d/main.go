/*
DESCRIPTION
  h264d decodes a baseline profile H.264 elementary stream from a file into
  planar I420, optionally reporting luma PSNR against a reference YUV
  sequence.

AUTHORS
  Saxon Nelson-Milton <saxon@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package h264d is a file to file H.264 decoding tool.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/ausocean/h264dec"
	"github.com/ausocean/utils/logging"
)

// Current software version.
const version = "v1.0.0"

// Logging configuration.
const (
	logPath      = "/var/log/h264d/h264d.log"
	logMaxSize   = 500 // MB
	logMaxBackup = 10
	logMaxAge    = 28 // days
	logSuppress  = true
)

func main() {
	inPath := flag.String("in", "", "Input file, annex B byte stream unless -avcc or -cfg is given.")
	outPath := flag.String("out", "", "Output file for decoded I420 frames.")
	refPath := flag.String("ref", "", "Reference I420 file to report luma PSNR against.")
	avcc := flag.Bool("avcc", false, "Input holds length prefixed NAL units rather than an annex B stream.")
	cfgPath := flag.String("cfg", "", "AVCDecoderConfigurationRecord file for out of band parameter sets; implies -avcc.")
	naluLen := flag.Int("nalu-len", 4, "NAL unit length prefix size for -avcc input without -cfg.")
	verbose := flag.Bool("v", false, "Enable debug logging.")
	showVersion := flag.Bool("version", false, "show version")
	flag.Parse()
	if *showVersion {
		fmt.Println(version)
		os.Exit(0)
	}

	// Create lumberjack logger to handle logging to file.
	fileLog := &lumberjack.Logger{
		Filename:   logPath,
		MaxSize:    logMaxSize,
		MaxBackups: logMaxBackup,
		MaxAge:     logMaxAge,
	}

	logVerbosity := logging.Info
	if *verbose {
		logVerbosity = logging.Debug
	}
	log := logging.New(logVerbosity, io.MultiWriter(fileLog, os.Stderr), logSuppress)

	if *inPath == "" {
		log.Fatal("no input file; use -in")
	}
	data, err := os.ReadFile(*inPath)
	if err != nil {
		log.Fatal("could not read input", "error", err)
	}

	var out io.WriteCloser
	if *outPath != "" {
		out, err = os.Create(*outPath)
		if err != nil {
			log.Fatal("could not create output", "error", err)
		}
		defer out.Close()
	}

	var report *psnrReport
	if *refPath != "" {
		ref, err := os.ReadFile(*refPath)
		if err != nil {
			log.Fatal("could not read reference", "error", err)
		}
		report = newPSNRReport(ref)
	}

	var frames int
	d, err := h264dec.NewDecoder(log, h264dec.FrameHandler(func(f *h264dec.Frame) {
		frames++
		buf := f.I420()
		if out != nil {
			if _, err := out.Write(buf); err != nil {
				log.Fatal("could not write frame", "error", err)
			}
		}
		if report != nil {
			if err := report.add(f, buf); err != nil {
				log.Fatal("could not score frame", "error", err)
			}
		}
	}))
	if err != nil {
		log.Fatal("could not create decoder", "error", err)
	}

	lengthSize := *naluLen
	if *cfgPath != "" {
		b, err := os.ReadFile(*cfgPath)
		if err != nil {
			log.Fatal("could not read configuration record", "error", err)
		}
		cfg, err := h264dec.ParseAVCConfig(b)
		if err != nil {
			log.Fatal("could not parse configuration record", "error", err)
		}
		if err := d.ConfigureAVCC(cfg); err != nil {
			log.Fatal("could not ingest configuration record", "error", err)
		}
		lengthSize = cfg.NALULengthSize
		*avcc = true
	}

	if *avcc {
		units, err := h264dec.SplitLengthPrefixed(data, lengthSize)
		if err != nil {
			log.Fatal("could not split length prefixed input", "error", err)
		}
		for i, u := range units {
			if _, err := d.DecodeNALU(u); err != nil {
				log.Fatal("could not decode NAL unit", "unit", i, "error", err)
			}
		}
	} else {
		if _, err := d.Decode(data); err != nil {
			log.Fatal("decode failed", "frames", frames, "error", err)
		}
	}

	log.Info("decode complete", "frames", frames)
	if report != nil {
		mean := report.mean()
		log.Info("psnr report", "frames", len(report.scores), "mean", mean)
		fmt.Printf("decoded %d frames, mean luma PSNR %.2f dB\n", frames, mean)
	} else {
		fmt.Printf("decoded %d frames\n", frames)
	}
}
