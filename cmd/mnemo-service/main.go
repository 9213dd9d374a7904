package main

import (
	"os"

	"github.com/rs/zerolog/log"

	"github.com/mnemolab/mnemo/memoryservice"
)

func main() {
	if err := memoryservice.Run(); err != nil {
		log.Error().Err(err).Msg("mnemo-service exited with error")
		os.Exit(1)
	}
}
