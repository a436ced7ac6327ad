package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/fatih/color"
)

// Smoke test against a running server. USER_TOKEN must hold a signed JWT and
// DOCUMENT_ID an id owned by that user.

func baseURL() string {
	if v := os.Getenv("API_BASE_URL"); v != "" {
		return v
	}
	return "http://localhost:3000/api"
}

// Pretty print JSON helper
func prettyPrint(v interface{}) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Printf("%v\n", v)
		return
	}
	fmt.Println(string(b))
}

// Request helper
func sendRequest(method, url, token string, body interface{}) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		jsonBody, _ := json.Marshal(body)
		bodyReader = bytes.NewBuffer(jsonBody)
	}

	req, err := http.NewRequest(method, baseURL()+url, bodyReader)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	client := &http.Client{} // No timeout, generation can be slow
	return client.Do(req)
}

func call(method, url, token string, body interface{}) map[string]interface{} {
	resp, err := sendRequest(method, url, token, body)
	if err != nil {
		color.Red("Failed: %v", err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	color.Green("Status: %s", resp.Status)
	var out map[string]interface{}
	json.NewDecoder(resp.Body).Decode(&out)
	prettyPrint(out)
	return out
}

func main() {
	token := os.Getenv("USER_TOKEN")
	docID := os.Getenv("DOCUMENT_ID")
	if token == "" || docID == "" {
		color.Red("USER_TOKEN and DOCUMENT_ID must be set")
		os.Exit(1)
	}

	color.Cyan("🚀 Starting Document QA API Test\n")

	// 1. List documents
	color.Yellow("\n1. List documents")
	call("GET", "/document/v1", token, nil)

	// 2. Prepare the document (the topic arrives over the websocket)
	color.Yellow("\n2. Prepare document %s", docID)
	call("POST", "/document/v1/"+docID+"/prepare", token, map[string]interface{}{"force": false})

	color.Yellow("\n3. Preparation status")
	call("GET", "/document/v1/preparation", token, nil)

	// 3. Ask in one shot
	color.Yellow("\n4. Ask about the current document")
	call("POST", "/qa/v1/ask", token, map[string]interface{}{
		"question":   "What is this document about?",
		"scope":      "current",
		"documentId": docID,
	})

	// 4. Ask with streaming
	color.Yellow("\n5. Ask with streaming")
	resp, err := sendRequest("POST", "/qa/v1/ask/stream", token, map[string]interface{}{
		"question": "Summarize the key points.",
		"scope":    "latest",
	})
	if err != nil {
		color.Red("Failed: %v", err)
		os.Exit(1)
	}
	defer resp.Body.Close()
	color.Green("Status: %s", resp.Status)

	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var frame map[string]interface{}
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &frame); err != nil {
			continue
		}
		switch frame["type"] {
		case "token":
			fmt.Print(frame["text"])
		case "sources":
			color.Blue("[sources] %v", frame["sources"])
		case "error":
			color.Red("\n[error] %v", frame["error"])
		case "done":
			fmt.Println()
			color.Green("[done]")
		}
	}

	color.Cyan("\n✅ API test finished")
}
