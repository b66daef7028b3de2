// Package sdk provides a Go client for the asksite support-chat API.
//
// The client covers the visitor endpoints (blocking chat, streaming chat
// over SSE, progress polling) and the admin surface (usage log, index
// management, health).
//
//	client := sdk.New("https://chat.example.com")
//
//	resp, _ := client.Chat(ctx, sdk.ChatRequest{
//	    Messages: []sdk.Message{{Role: "user", Content: "When are you open?"}},
//	    PageURL:  "https://example.com/contact",
//	})
//	fmt.Println(resp.Reply)
//
// Streaming delivers deltas and retrieval statuses as they happen:
//
//	_ = client.ChatStream(ctx, req, func(ev sdk.StreamEvent) {
//	    if ev.Delta != "" {
//	        fmt.Print(ev.Delta)
//	    }
//	})
package sdk
