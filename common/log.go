// Copyright 2021-2023
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package common

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/rs/zerolog/pkgerrors"
	"github.com/spf13/viper"
)

// SetupLogging configures the global zerolog logger from the log.* config
// keys. log.level accepts any zerolog level name and defaults to warn,
// log.output selects stdout, stderr, or an append-only file path, and
// log.pretty switches the stream writers to the console format. Called once
// from the root command before any request is served.
func SetupLogging() {
	name := strings.ToLower(viper.GetString("log.level"))
	if name == "warning" {
		name = "warn"
	}
	level, err := zerolog.ParseLevel(name)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.WarnLevel
	}
	zerolog.SetGlobalLevel(level)

	if viper.GetBool("log.report_caller") {
		log.Logger = log.With().Caller().Logger()
	}

	log.Logger = log.Output(logWriter(viper.GetString("log.output")))

	//nolint:reassign
	zerolog.ErrorStackMarshaler = pkgerrors.MarshalStack
}

func logWriter(output string) io.Writer {
	switch output {
	case "stdout":
		return streamWriter(os.Stdout)
	case "stderr":
		return streamWriter(os.Stderr)
	default:
		fh, err := os.OpenFile(output, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0600)
		if err != nil {
			panic(err)
		}
		return fh
	}
}

func streamWriter(stream *os.File) io.Writer {
	if viper.GetBool("log.pretty") {
		return zerolog.ConsoleWriter{Out: stream}
	}
	return stream
}
