/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"patchup/internal/config"
	"patchup/internal/crash"
	applog "patchup/internal/log"
	"patchup/internal/version"
)

func usage() {
	fmt.Println("patchup - polygon annotation tool")
	fmt.Printf("Version: %s\n", version.String())
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  patchup version|-v|--version                       Show version")
	fmt.Println("  patchup check <polygons.json>                      Validate a polygons document")
	fmt.Println("  patchup replay <events.yaml> [-o out.json]         Play scripted pointer events headlessly")
	fmt.Println("                 [-labeled]                          Print label -> points instead of the document")
	fmt.Println("  patchup export <polygons.json> <out.svg|pdf|png>   Render polygons (-open, -no-labels, -scale)")
	fmt.Println("  patchup payload <polygons.json> [image]            Print label -> points, in image pixels when given")
	fmt.Println("  patchup history <polygons.json> [-n 10]            List journaled commits of a document")
	fmt.Println("  patchup ui <image> [polygons.json] [-restore]      Launch desktop editor (build with -tags fyne)")
}

func main() {
	cfg, err := config.Load()
	applog.Init(cfg.Logging.LogOptions())
	l := applog.WithComponent("cli")
	if err != nil {
		l.Warn("config load failed; using defaults", slog.Any("err", err))
	}
	var target crash.Target
	defer crash.Recover(&target)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	args := os.Args
	l.Debug("start", slog.Int("args", len(args)))
	if len(args) < 2 {
		usage()
		return
	}
	switch args[1] {
	case "version", "--version", "-v":
		fmt.Println(version.String())
		return
	case "check":
		err = runCheck(args[2:], os.Stdout)
	case "replay":
		err = runReplay(ctx, cfg, args[2:], os.Stdout)
	case "export":
		err = runExport(cfg, args[2:], os.Stdout)
	case "payload":
		err = runPayload(cfg, args[2:], os.Stdout)
	case "history":
		err = runHistory(ctx, cfg, args[2:], os.Stdout)
	case "ui":
		cfgPath, _ := config.ConfigPath()
		err = runUI(ctx, cfg, cfgPath, &target, args[2:])
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		var ue usageError
		if errors.As(err, &ue) {
			fmt.Println(ue.msg)
			usage()
			stop()
			os.Exit(2)
		}
		l.Error("command failed", slog.String("cmd", args[1]), slog.Any("err", err))
		fmt.Println("Error:", err)
		stop()
		os.Exit(1)
	}
}
