package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"storyhub/pkg/models"
)

const defaultBaseURL = "http://localhost:8080"

type storyListResponse struct {
	Total  int            `json:"total"`
	Limit  int            `json:"limit"`
	Offset int            `json:"offset"`
	Items  []models.Story `json:"items"`
}

func main() {
	global := flag.NewFlagSet("storyhub", flag.ExitOnError)
	baseURL := global.String("api", defaultBaseURL, "API base URL")
	if err := global.Parse(os.Args[1:]); err != nil {
		log.Fatalf("parse flags: %v", err)
	}
	args := global.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	ctx := context.Background()
	cmd := args[0]
	sub := ""
	if len(args) > 1 {
		sub = args[1]
	}

	client := &http.Client{Timeout: 15 * time.Second}

	switch cmd {
	case "story":
		handleStory(ctx, client, *baseURL, sub, args[2:])
	case "audio":
		handleAudio(ctx, client, *baseURL, sub, args[2:])
	case "composition":
		handleComposition(ctx, client, *baseURL, sub, args[2:])
	case "export":
		handleExport(ctx, client, *baseURL, sub, args[2:])
	case "assets":
		handleAssets(ctx, client, *baseURL, sub, args[2:])
	case "events":
		handleEvents(*baseURL, sub, args[2:])
	case "notify":
		handleNotify(sub, args[2:])
	default:
		printUsage()
		os.Exit(1)
	}
}

func handleStory(ctx context.Context, client *http.Client, baseURL, sub string, args []string) {
	switch sub {
	case "list":
		fs := flag.NewFlagSet("story list", flag.ExitOnError)
		limit := fs.Int("limit", 20, "page size")
		offset := fs.Int("offset", 0, "offset")
		_ = fs.Parse(args)

		u, err := url.Parse(baseURL + "/stories")
		if err != nil {
			log.Fatalf("invalid base url: %v", err)
		}
		qv := u.Query()
		qv.Set("limit", fmt.Sprintf("%d", *limit))
		qv.Set("offset", fmt.Sprintf("%d", *offset))
		u.RawQuery = qv.Encode()

		var resp storyListResponse
		if err := doJSON(ctx, client, http.MethodGet, u.String(), nil, &resp); err != nil {
			log.Fatalf("list failed: %v", err)
		}
		printJSON(resp)
	case "show":
		fs := flag.NewFlagSet("story show", flag.ExitOnError)
		id := fs.String("id", "", "story id")
		_ = fs.Parse(args)
		if *id == "" {
			log.Fatal("story id is required")
		}

		var resp models.Story
		if err := doJSON(ctx, client, http.MethodGet, baseURL+"/stories/"+url.PathEscape(*id), nil, &resp); err != nil {
			log.Fatalf("show failed: %v", err)
		}
		printJSON(resp)
	case "create":
		fs := flag.NewFlagSet("story create", flag.ExitOnError)
		title := fs.String("title", "", "story title")
		aspect := fs.String("aspect", "", "aspect ratio (16:9, 9:16, 1:1, 4:5)")
		resolution := fs.String("resolution", "", "target resolution, e.g. 1920x1080")
		_ = fs.Parse(args)
		if *title == "" {
			log.Fatal("title is required")
		}

		payload := map[string]any{"title": *title}
		if *aspect != "" {
			payload["aspect_ratio"] = *aspect
		}
		if *resolution != "" {
			payload["resolution"] = *resolution
		}
		var resp models.Story
		if err := doJSON(ctx, client, http.MethodPost, baseURL+"/stories", payload, &resp); err != nil {
			log.Fatalf("create failed: %v", err)
		}
		printJSON(resp)
	case "delete":
		fs := flag.NewFlagSet("story delete", flag.ExitOnError)
		id := fs.String("id", "", "story id")
		_ = fs.Parse(args)
		if *id == "" {
			log.Fatal("story id is required")
		}

		var resp map[string]any
		if err := doJSON(ctx, client, http.MethodDelete, baseURL+"/stories/"+url.PathEscape(*id), nil, &resp); err != nil {
			log.Fatalf("delete failed: %v", err)
		}
		printJSON(resp)
	default:
		log.Fatal("usage: storyhub story <list|show|create|delete>")
	}
}

func handleAudio(ctx context.Context, client *http.Client, baseURL, sub string, args []string) {
	switch sub {
	case "set":
		fs := flag.NewFlagSet("audio set", flag.ExitOnError)
		id := fs.String("id", "", "story id")
		narration := fs.Float64("narration-volume", -1, "narration volume [0,1]")
		bgm := fs.Float64("bgm-volume", -1, "background music volume [0,1]")
		speed := fs.Float64("narration-speed", -1, "narration speed multiplier")
		_ = fs.Parse(args)
		if *id == "" {
			log.Fatal("story id is required")
		}

		payload := map[string]any{}
		if *narration >= 0 {
			payload["narration_volume"] = *narration
		}
		if *bgm >= 0 {
			payload["bgm_volume"] = *bgm
		}
		if *speed >= 0 {
			payload["narration_speed"] = *speed
		}
		if len(payload) == 0 {
			log.Fatal("nothing to set")
		}

		var resp models.Story
		if err := doJSON(ctx, client, http.MethodPut, baseURL+"/stories/"+url.PathEscape(*id)+"/audio-settings", payload, &resp); err != nil {
			log.Fatalf("audio set failed: %v", err)
		}
		printJSON(resp)
	default:
		log.Fatal("usage: storyhub audio set")
	}
}

func handleComposition(ctx context.Context, client *http.Client, baseURL, sub string, args []string) {
	switch sub {
	case "dump":
		fs := flag.NewFlagSet("composition dump", flag.ExitOnError)
		id := fs.String("id", "", "story id")
		out := fs.String("out", "", "output path (defaults to <id>.json)")
		_ = fs.Parse(args)
		if *id == "" {
			log.Fatal("story id is required")
		}
		path := *out
		if path == "" {
			path = *id + ".json"
		}

		var comp models.StoryComposition
		if err := doJSON(ctx, client, http.MethodGet, baseURL+"/stories/"+url.PathEscape(*id)+"/composition", nil, &comp); err != nil {
			log.Fatalf("dump failed: %v", err)
		}
		if err := writeJSON(path, comp); err != nil {
			log.Fatalf("write json failed: %v", err)
		}
		log.Printf("✅ dumped story %s to %s", *id, path)
	case "load":
		fs := flag.NewFlagSet("composition load", flag.ExitOnError)
		in := fs.String("in", "", "composition JSON path")
		_ = fs.Parse(args)
		if *in == "" {
			log.Fatal("input path is required")
		}

		data, err := os.ReadFile(*in)
		if err != nil {
			log.Fatalf("read %s: %v", *in, err)
		}
		var comp models.StoryComposition
		if err := json.Unmarshal(data, &comp); err != nil {
			log.Fatalf("parse %s: %v", *in, err)
		}

		var resp models.StoryComposition
		if err := doJSON(ctx, client, http.MethodPost, baseURL+"/stories/import", comp, &resp); err != nil {
			log.Fatalf("load failed: %v", err)
		}
		log.Printf("✅ loaded %s as story %s", *in, resp.ID)
	default:
		log.Fatal("usage: storyhub composition <dump|load>")
	}
}

func handleExport(ctx context.Context, client *http.Client, baseURL, sub string, args []string) {
	switch sub {
	case "run":
		fs := flag.NewFlagSet("export run", flag.ExitOnError)
		id := fs.String("id", "", "story id")
		_ = fs.Parse(args)
		if *id == "" {
			log.Fatal("story id is required")
		}

		// exports can take a while; no client timeout here
		exportClient := &http.Client{}
		var resp map[string]any
		if err := doJSON(ctx, exportClient, http.MethodPost, baseURL+"/stories/"+url.PathEscape(*id)+"/export", nil, &resp); err != nil {
			log.Fatalf("export failed: %v", err)
		}
		printJSON(resp)
	default:
		log.Fatal("usage: storyhub export run")
	}
}

func handleAssets(ctx context.Context, client *http.Client, baseURL, sub string, args []string) {
	switch sub {
	case "audio", "images":
		var resp map[string]any
		if err := doJSON(ctx, client, http.MethodGet, baseURL+"/assets/"+sub, nil, &resp); err != nil {
			log.Fatalf("assets %s failed: %v", sub, err)
		}
		printJSON(resp)
	default:
		log.Fatal("usage: storyhub assets <audio|images>")
	}
}

func handleEvents(baseURL, sub string, args []string) {
	switch sub {
	case "listen":
		fs := flag.NewFlagSet("events listen", flag.ExitOnError)
		addr := fs.String("addr", "127.0.0.1:7070", "TCP event server address")
		pretty := fs.Bool("pretty", true, "pretty print JSON events")
		_ = fs.Parse(args)
		for {
			if err := runEventsTCP(*addr, *pretty); err != nil {
				log.Printf("[events] disconnected: %v", err)
			}
			time.Sleep(1 * time.Second)
		}
	case "subscribe":
		fs := flag.NewFlagSet("events subscribe", flag.ExitOnError)
		wsURL := fs.String("ws", "", "WebSocket URL (defaults to /ws on API host)")
		_ = fs.Parse(args)

		endpoint := *wsURL
		if endpoint == "" {
			var err error
			endpoint, err = websocketURL(baseURL, "/ws")
			if err != nil {
				log.Fatalf("ws url: %v", err)
			}
		}
		if err := runWebSocket(endpoint); err != nil {
			log.Fatalf("subscribe failed: %v", err)
		}
	default:
		log.Fatal("usage: storyhub events <listen|subscribe>")
	}
}

func handleNotify(sub string, args []string) {
	switch sub {
	case "listen":
		fs := flag.NewFlagSet("notify listen", flag.ExitOnError)
		addr := fs.String("addr", "127.0.0.1:9090", "UDP notify server address")
		clientID := fs.String("client-id", "", "client id (defaults to a random id)")
		_ = fs.Parse(args)

		id := *clientID
		if id == "" {
			id = uuid.NewString()
		}
		if err := runNotifyUDP(*addr, id); err != nil {
			log.Fatalf("notify listen failed: %v", err)
		}
	default:
		log.Fatal("usage: storyhub notify listen")
	}
}

func runEventsTCP(addr string, pretty bool) error {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return fmt.Errorf("dial %s: %w", addr, err)
	}
	defer conn.Close()

	log.Printf("[events] connected to %s", addr)
	reader := bufio.NewScanner(conn)
	for reader.Scan() {
		line := reader.Bytes()
		if !pretty {
			fmt.Println(string(line))
			continue
		}
		var obj map[string]any
		if err := json.Unmarshal(line, &obj); err != nil {
			fmt.Println(string(line))
			continue
		}
		b, _ := json.MarshalIndent(obj, "", "  ")
		fmt.Println(string(b))
	}
	if err := reader.Err(); err != nil {
		return err
	}
	return os.ErrClosed
}

func runWebSocket(wsURL string) error {
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		return err
	}
	defer conn.Close()
	log.Printf("[events] connected to %s", wsURL)
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		fmt.Println(string(msg))
	}
}

func runNotifyUDP(addr, clientID string) error {
	conn, err := net.Dial("udp", addr)
	if err != nil {
		return err
	}
	defer conn.Close()

	register, err := json.Marshal(map[string]string{
		"type":      "register",
		"client_id": clientID,
	})
	if err != nil {
		return err
	}
	if _, err := conn.Write(register); err != nil {
		return err
	}
	log.Printf("[notify] registered with %s as %s", addr, clientID)

	buf := make([]byte, 2048)
	for {
		n, err := conn.Read(buf)
		if err != nil {
			return err
		}
		fmt.Println(string(buf[:n]))
	}
}

func writeJSON(path string, v any) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}

func doJSON(ctx context.Context, client *http.Client, method, endpoint string, payload any, out any) error {
	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = strings.NewReader(string(b))
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("%s %s failed: %s", method, endpoint, strings.TrimSpace(string(data)))
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return err
	}
	return nil
}

func printJSON(v any) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		log.Fatalf("json: %v", err)
	}
	fmt.Println(string(b))
}

func websocketURL(baseURL, path string) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", err
	}
	scheme := "ws"
	if u.Scheme == "https" {
		scheme = "wss"
	}
	return (&url.URL{
		Scheme: scheme,
		Host:   u.Host,
		Path:   path,
	}).String(), nil
}

func printUsage() {
	fmt.Println("storyhub <command> [subcommand] [flags]")
	fmt.Println("commands:")
	fmt.Println("  story list|show|create|delete")
	fmt.Println("  audio set")
	fmt.Println("  composition dump|load")
	fmt.Println("  export run")
	fmt.Println("  assets audio|images")
	fmt.Println("  events listen|subscribe")
	fmt.Println("  notify listen")
}
