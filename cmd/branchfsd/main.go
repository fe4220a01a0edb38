package main

import "github.com/sirupsen/logrus"

func main() {
	if err := rootCmd.Execute(); err != nil {
		logrus.Fatalf("failed to execute root command: %v", err)
	}
}
