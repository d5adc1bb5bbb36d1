/*
 * Copyright 2024 CloudWeGo Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Command traceplay replays a malloc/free/realloc trace against a heapfit
// allocator and reports arena growth and utilization.
//
// Trace format, one operation per line:
//
//	a <id> <size>   allocate <size> bytes, remembered under <id>
//	f <id>          free the block remembered under <id>
//	r <id> <size>   reallocate the block under <id> to <size> bytes
//	# comment       ignored, as is any blank line
package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/alloclab/segfit/cache/linepool"
	"github.com/alloclab/segfit/heapfit"
	"github.com/alloclab/segfit/heapfit/memhost"
	"github.com/alloclab/segfit/unsafex"
)

func main() {
	tracePath := flag.String("trace", "", "trace file to replay (default: stdin)")
	capacity := flag.Int("capacity", memhost.DefaultCapacity, "arena capacity in bytes")
	checkEvery := flag.Int("check-every", 0, "run a structural Check() every N operations (0 disables)")
	flag.Parse()

	in := os.Stdin
	if *tracePath != "" {
		f, err := os.Open(*tracePath)
		if err != nil {
			log.Fatalf("traceplay: %v", err)
		}
		defer f.Close()
		in = f
	}

	stats, err := replay(in, *capacity, *checkEvery)
	if err != nil {
		log.Fatalf("traceplay: %v", err)
	}

	fmt.Printf("ops:          %d\n", stats.ops)
	fmt.Printf("peak live:    %d bytes\n", stats.peakLive)
	fmt.Printf("arena grown:  %d bytes\n", stats.arenaBytes)
	fmt.Printf("utilization:  %.2f%%\n", stats.utilization()*100)
}

type report struct {
	ops        int
	peakLive   int
	curLive    int
	arenaBytes int
}

func (r *report) utilization() float64 {
	if r.arenaBytes == 0 {
		return 0
	}
	return float64(r.peakLive) / float64(r.arenaBytes)
}

func replay(r io.Reader, capacity, checkEvery int) (*report, error) {
	host := memhost.WithCapacity(capacity)
	a, err := heapfit.New(host)
	if err != nil {
		return nil, fmt.Errorf("init allocator: %w", err)
	}

	live := make(map[string][]byte)
	stats := &report{}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(linepool.Get(64*1024), 1<<20)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		raw := scanner.Bytes()
		line := strings.TrimSpace(unsafex.BinaryToString(raw))
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		// fields alias scanner's reused read buffer through the zero-copy
		// conversion above; any field kept past this iteration (a map key)
		// must be cloned first.

		switch fields[0] {
		case "a":
			id, size, err := parseIDSize(fields)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", lineNo, err)
			}
			block := a.Alloc(size)
			live[id] = block
			stats.curLive += len(block)

		case "f":
			if len(fields) != 2 {
				return nil, fmt.Errorf("line %d: want 'f <id>'", lineNo)
			}
			id := cloneID(fields[1])
			block, ok := live[id]
			if !ok {
				return nil, fmt.Errorf("line %d: free of unknown id %q", lineNo, id)
			}
			stats.curLive -= len(block)
			a.Free(block)
			delete(live, id)

		case "r":
			id, size, err := parseIDSize(fields)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", lineNo, err)
			}
			block, ok := live[id]
			if !ok {
				return nil, fmt.Errorf("line %d: realloc of unknown id %q", lineNo, id)
			}
			stats.curLive -= len(block)
			block = a.Realloc(block, size)
			live[id] = block
			stats.curLive += len(block)

		default:
			return nil, fmt.Errorf("line %d: unknown op %q", lineNo, fields[0])
		}

		stats.ops++
		if stats.curLive > stats.peakLive {
			stats.peakLive = stats.curLive
		}
		lo, hi := host.Bounds()
		stats.arenaBytes = hi - lo

		if checkEvery > 0 && stats.ops%checkEvery == 0 {
			if !a.Check() {
				return nil, fmt.Errorf("line %d: structural check failed after %d ops", lineNo, stats.ops)
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan: %w", err)
	}
	return stats, nil
}

func parseIDSize(fields []string) (id string, size int, err error) {
	if len(fields) != 3 {
		return "", 0, fmt.Errorf("want '%s <id> <size>'", fields[0])
	}
	size, err = strconv.Atoi(fields[2])
	if err != nil {
		return "", 0, fmt.Errorf("bad size %q: %w", fields[2], err)
	}
	return cloneID(fields[1]), size, nil
}

// cloneID copies an id out of the scanner's reused line buffer so it
// remains valid as a map key across subsequent Scan calls.
func cloneID(s string) string {
	return string([]byte(s))
}
