package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"log"
	"net/http"
	"strings"

	"github.com/yashmane1300/two-phase-commit/domain"
)

// Demo driver: registers participants with the coordinator, runs a committed
// multi-participant write, then a transaction that must abort, and prints the
// resulting resource state.

func main() {
	coordinator := flag.String("coordinator", "localhost:50050", "coordinator address")
	participants := flag.String("participants", "participant1=localhost:50051,participant2=localhost:50052", "participants as id=host:port pairs")
	flag.Parse()

	base := "http://" + *coordinator

	ids := make([]string, 0)
	addresses := make(map[string]string)
	for _, pair := range strings.Split(*participants, ",") {
		id, address, ok := strings.Cut(pair, "=")
		if !ok {
			log.Fatalf("malformed participant entry %q", pair)
		}
		ids = append(ids, id)
		addresses[id] = address

		var resp domain.RegisterResponse
		postJSON(base+"/register", &domain.RegisterRequest{ParticipantID: id, Address: address}, &resp)
		log.Printf("registered %s at %s: %s", id, address, resp.Message)
	}

	log.Println("executing transaction: WRITE a=1, WRITE b=2")
	var exec domain.ExecuteResponse
	postJSON(base+"/execute", &domain.ExecuteRequest{
		Operations: []domain.Operation{
			{Key: "a", Value: "1", Type: domain.OpWrite},
			{Key: "b", Value: "2", Type: domain.OpWrite},
		},
		Participants: ids,
	}, &exec)
	log.Printf("transaction %s: success=%v (%s)", exec.TransactionID, exec.Success, exec.Message)

	log.Println("executing transaction: READ missing_key (must abort)")
	var failed domain.ExecuteResponse
	postJSON(base+"/execute", &domain.ExecuteRequest{
		Operations:   []domain.Operation{{Key: "missing_key", Type: domain.OpRead}},
		Participants: ids,
	}, &failed)
	log.Printf("transaction %s: success=%v (%s)", failed.TransactionID, failed.Success, failed.Message)

	for _, id := range ids {
		for _, key := range []string{"a", "b"} {
			var resource domain.ResourceResponse
			getJSON("http://"+addresses[id]+"/resource/"+key, &resource)
			log.Printf("%s: %s = %q (exists=%v)", id, key, resource.Value, resource.Exists)
		}
	}
}

func postJSON(url string, in, out interface{}) {
	body, err := json.Marshal(in)
	if err != nil {
		log.Fatalf("encode request for %s: %v", url, err)
	}

	resp, err := http.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		log.Fatalf("POST %s: %v", url, err)
	}
	defer resp.Body.Close()

	decode(url, resp, out)
}

func getJSON(url string, out interface{}) {
	resp, err := http.Get(url)
	if err != nil {
		log.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()

	decode(url, resp, out)
}

func decode(url string, resp *http.Response, out interface{}) {
	if resp.StatusCode != http.StatusOK {
		log.Fatalf("%s returned %s", url, resp.Status)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		log.Fatalf("decode response from %s: %v", url, err)
	}
}
