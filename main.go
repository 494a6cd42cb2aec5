package main

import (
	"bufio"
	"flag"
	"fmt"
	"log"
	"net"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"bufferpool/pkg/buffer"
	"bufferpool/pkg/storage/disk"
	"bufferpool/pkg/storage/page"
	"bufferpool/pkg/wal"
)

var (
	addr         = flag.String("addr", ":8888", "address to listen on")
	dataDir      = flag.String("data-dir", "./bufferpool_data", "directory holding the backing data file")
	dbFile       = flag.String("db-file", "pool.db", "backing data file name, relative to -data-dir")
	poolSize     = flag.Int("pool-size", 128, "frames per instance")
	numInstances = flag.Uint("instances", 1, "number of parallel pool instances (1 disables sharding)")
	memoryOnly   = flag.Bool("memory", false, "back the pool with an in-memory disk manager instead of a file")
)

func main() {
	flag.Parse()

	diskManager, closeDisk := mustDiskManager()
	defer closeDisk()

	logManager := wal.NewSequenceLogManager()
	pool := buffer.NewParallelBufferPoolManager(uint32(*numInstances), *poolSize, diskManager, logManager)

	listener, err := net.Listen("tcp", *addr)
	if err != nil {
		log.Fatalf("listen on %s: %v", *addr, err)
	}
	log.Printf("bufferpoold listening on %s (total frames=%d, instances=%d)", *addr, pool.GetPoolSize(), *numInstances)

	for {
		conn, err := listener.Accept()
		if err != nil {
			log.Printf("accept error: %v", err)
			continue
		}
		go handleClient(conn, pool)
	}
}

func mustDiskManager() (disk.DiskManager, func() error) {
	if *memoryOnly {
		dm := disk.NewMemoryManager()
		return dm, dm.Close
	}

	dm, err := disk.NewFileManager(filepath.Join(*dataDir, *dbFile))
	if err != nil {
		log.Fatalf("open data file: %v", err)
	}
	return dm, dm.Close
}

// handleClient speaks a line-oriented protocol: one command per line, one
// reply per command. It never shares mutable per-connection state beyond
// the pool itself, so commands from different connections interleave
// freely and safely.
func handleClient(conn net.Conn, pool *buffer.ParallelBufferPoolManager) {
	clientAddr := conn.RemoteAddr().String()
	log.Printf("connection from %s", clientAddr)
	defer conn.Close()

	conn.Write([]byte("bufferpoold ready\n> "))

	reader := bufio.NewReader(conn)
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			log.Printf("%s disconnected", clientAddr)
			return
		}

		cmd := strings.TrimSpace(line)
		if cmd == "" {
			conn.Write([]byte("> "))
			continue
		}
		if strings.EqualFold(cmd, "quit") || strings.EqualFold(cmd, "exit") {
			return
		}

		start := time.Now()
		reply, err := dispatch(pool, cmd)
		elapsed := time.Since(start)

		if err != nil {
			conn.Write([]byte(fmt.Sprintf("ERR %v (%.4fs)\n", err, elapsed.Seconds())))
		} else {
			conn.Write([]byte(fmt.Sprintf("%s (%.4fs)\n", reply, elapsed.Seconds())))
		}
		conn.Write([]byte("> "))
	}
}

// dispatch runs one admin command against the pool and renders its result
// as a single reply line. NEW, GET and PUT pin a page and unpin it again
// before replying; every other command is one public buffer-pool operation.
func dispatch(pool *buffer.ParallelBufferPoolManager, cmd string) (string, error) {
	fields := strings.Fields(cmd)
	verb := strings.ToUpper(fields[0])

	switch verb {
	case "NEW":
		id, p, err := pool.NewPage()
		if p == nil {
			if err != nil {
				return "", fmt.Errorf("new page: %w", err)
			}
			return "", buffer.ErrPoolExhausted
		}
		pool.UnpinPage(id, false)
		return fmt.Sprintf("OK id=%d", id), nil

	case "GET":
		id, err := parsePageID(fields)
		if err != nil {
			return "", err
		}
		p, err := pool.FetchPage(id)
		if p == nil {
			if err != nil {
				return "", fmt.Errorf("get page %d: %w", id, err)
			}
			return "", buffer.ErrPoolExhausted
		}
		defer pool.UnpinPage(id, false)
		return fmt.Sprintf("OK %s", previewText(p)), nil

	case "PUT":
		if len(fields) < 3 {
			return "", fmt.Errorf("usage: PUT <id> <text>")
		}
		id, err := parsePageID(fields)
		if err != nil {
			return "", err
		}
		text := strings.Join(fields[2:], " ")
		p, err := pool.FetchPage(id)
		if p == nil {
			if err != nil {
				return "", fmt.Errorf("put page %d: %w", id, err)
			}
			return "", buffer.ErrPoolExhausted
		}
		copy(p.Data[:], text)
		pool.UnpinPage(id, true)
		return "OK", nil

	case "UNPIN":
		if len(fields) < 3 {
			return "", fmt.Errorf("usage: UNPIN <id> <dirty>")
		}
		id, err := parsePageID(fields)
		if err != nil {
			return "", err
		}
		dirty, err := strconv.ParseBool(fields[2])
		if err != nil {
			return "", fmt.Errorf("dirty flag must be true/false: %w", err)
		}
		if !pool.UnpinPage(id, dirty) {
			return "", fmt.Errorf("unpin page %d: pin count is already zero", id)
		}
		return "OK", nil

	case "FLUSH":
		id, err := parsePageID(fields)
		if err != nil {
			return "", err
		}
		ok, err := pool.FlushPage(id)
		if err != nil {
			return "", fmt.Errorf("flush page %d: %w", id, err)
		}
		if !ok {
			return "", buffer.ErrPageNotResident
		}
		return "OK", nil

	case "FLUSHALL":
		if err := pool.FlushAllPages(); err != nil {
			return "", fmt.Errorf("flush all: %w", err)
		}
		return "OK", nil

	case "DELETE":
		id, err := parsePageID(fields)
		if err != nil {
			return "", err
		}
		if !pool.DeletePage(id) {
			return "", buffer.ErrPagePinned
		}
		return "OK", nil

	case "STATS":
		var b strings.Builder
		for i, s := range pool.Audit() {
			fmt.Fprintf(&b, "instance[%d]: %s; ", i, s)
		}
		return "OK " + strings.TrimSuffix(b.String(), "; "), nil

	default:
		return "", fmt.Errorf("unknown command %q", verb)
	}
}

func parsePageID(fields []string) (page.ID, error) {
	if len(fields) < 2 {
		return page.InvalidID, fmt.Errorf("usage: %s <id>", fields[0])
	}
	n, err := strconv.Atoi(fields[1])
	if err != nil {
		return page.InvalidID, fmt.Errorf("invalid page id %q: %w", fields[1], err)
	}
	return page.ID(n), nil
}

func previewText(p *page.Page) string {
	end := 0
	for end < len(p.Data) && p.Data[end] != 0 {
		end++
	}
	return strconv.Quote(string(p.Data[:end]))
}
