package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/dushixiang/evotrader/internal/service"
	"github.com/dushixiang/evotrader/pkg/exchange"
)

// 手动验证特征提取：go run ./cmd/test BTCUSDT
func main() {
	ticker := "BTCUSDT"
	if len(os.Args) > 1 {
		ticker = os.Args[1]
	}

	client := exchange.NewBinanceClient("", "", os.Getenv("PROXY_URL"), false)
	klines, err := client.GetKlines(context.Background(), ticker, "1h", 100)
	if err != nil {
		log.Fatal(err)
	}

	fv, err := service.NewFeatureService().Extract(klines)
	if err != nil {
		log.Fatal(err)
	}

	names := service.FeatureNames()
	for i, v := range fv.Values() {
		fmt.Printf("%-16s %f\n", names[i], v)
	}
}
