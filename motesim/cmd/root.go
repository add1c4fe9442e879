// Package cmd provides the command-line interface for motesim.
package cmd

import (
	"errors"
	"io/fs"
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"
)

// Environment variables that provide flag defaults. They can also be set in
// a .env file in the working directory.
const (
	envDelay       = "MOTESIM_DELAY"
	envMonitorPort = "MOTESIM_MONITOR_PORT"
	envOutput      = "MOTESIM_OUTPUT"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "motesim",
	Short: "motesim runs discrete-time simulations of networked motes.",
	Long: `motesim loads a simulation configuration, advances all of its ` +
		`motes in lockstep rounds, and saves the result. Simulations can be ` +
		`watched and controlled through a web monitor.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags
// appropriately.
func Execute() {
	err := loadEnv(".env")
	if err != nil {
		log.Printf("cannot load .env: %v", err)
	}

	err = rootCmd.Execute()
	if err != nil {
		atexit.Exit(1)
	}

	atexit.Exit(0)
}

func init() {
	rootCmd.PersistentFlags().BoolP("verbose", "v", false,
		"Print every state change of the simulation.")
}

// loadEnv reads environment defaults from a file. A missing file is not an
// error. Variables that are already set are kept.
func loadEnv(path string) error {
	err := godotenv.Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}

	return err
}

func envString(name, def string) string {
	v, ok := os.LookupEnv(name)
	if !ok || v == "" {
		return def
	}

	return v
}

func envInt(name string, def int64) int64 {
	v, ok := os.LookupEnv(name)
	if !ok || v == "" {
		return def
	}

	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		log.Printf("ignoring %s=%q: %v", name, v, err)
		return def
	}

	return i
}
