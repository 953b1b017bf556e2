// Command livecapture runs live face capture sessions from a terminal,
// an HTTP server or the system tray.
package main

import "os"

func main() {
	os.Exit(execute(os.Args[1:]))
}
