// Copyright 2026 Marcelo Cantos
// SPDX-License-Identifier: Apache-2.0

package shell

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

// HandleSignals keeps the interpreter alive through SIGINT and SIGTSTP and
// runs the exit built-in on SIGHUP. Children get default dispositions back
// on exec. The returned function restores default handling.
func (in *Interpreter) HandleSignals() (stop func()) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTSTP, syscall.SIGHUP)

	done := make(chan struct{})
	go func() {
		for {
			select {
			case sig := <-sigs:
				in.handle(sig)
			case <-done:
				return
			}
		}
	}()

	return func() {
		signal.Stop(sigs)
		close(done)
	}
}

func (in *Interpreter) handle(sig os.Signal) {
	in.log.Printf("signal %v", sig)
	if sig != syscall.SIGHUP {
		return
	}
	if b, ok := in.builtins.Lookup(exitBuiltin{}.Name()); ok {
		b.Run(context.Background(), in)
	}
	in.Stop()
}
