package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"AgentFleet-Chain/sdk/go/agentfleet"
)

func main() {
	baseURL := os.Getenv("AGENTFLEET_API_URL")
	if baseURL == "" {
		baseURL = "http://127.0.0.1:8080"
	}

	client, err := agentfleet.NewClient(baseURL, os.Getenv("AGENTFLEET_API_TOKEN"), nil)
	if err != nil {
		log.Fatalf("create client: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := client.Health(ctx); err != nil {
		log.Fatalf("daemon not reachable: %v", err)
	}

	doc, err := client.GetState(ctx)
	if err != nil {
		log.Fatalf("fetch state: %v", err)
	}
	if doc.Mint != nil {
		fmt.Printf("mint: %s (decimals %d)\n", doc.Mint.Address, doc.Mint.Decimals)
	}
	fmt.Printf("agents with derived accounts: %d\n", len(doc.ATAs))

	transfers, err := client.ListTransfers(ctx, 10)
	if err != nil {
		log.Fatalf("fetch transfers: %v", err)
	}
	for _, transfer := range transfers {
		fmt.Printf("round %d: %s -> %s (%d raw)\n",
			transfer.Round, transfer.FromAgent, transfer.ToAgent, transfer.AmountRaw)
	}
}
