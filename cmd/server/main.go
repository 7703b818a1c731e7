// cmd/server/main.go
package main

import (
	"log"

	"github.com/moyu-ai/moyu-writer/internal/app"
)

func main() {
	if err := app.Initialize(); err != nil {
		log.Fatalf("初始化失败: %v", err)
	}
	if err := app.Run(); err != nil {
		log.Fatalf("运行失败: %v", err)
	}
}
