// This program performs administrative tasks for the ledger store.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/ardanlabs/powledger/app/tooling/admin/commands"
	"github.com/ardanlabs/powledger/foundation/logger"
	"go.uber.org/zap"
)

func main() {

	// Construct the application logger. Command output goes to stdout so
	// logs are kept on stderr.
	log, err := logger.NewStderr("ADMIN")
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(log); err != nil {
		log.Errorw("admin", "ERROR", err)
		log.Sync()
		os.Exit(1)
	}
}

func run(log *zap.SugaredLogger) error {
	return commands.NewRoot(log).ExecuteContext(context.Background())
}
