// Command mount_logger records mountd status updates in InfluxDB.
package main

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/gorilla/websocket"
	influxdb2 "github.com/influxdata/influxdb-client-go"
	"github.com/influxdata/influxdb-client-go/api"
)

func main() {
	// Create client
	server := os.Getenv("INFLUX_SERVER")
	if server == "" {
		server = "http://localhost:9999"
	}
	bucket := os.Getenv("INFLUX_BUCKET")
	if bucket == "" {
		bucket = "mount.raw"
	}
	client := influxdb2.NewClient(server, os.Getenv("INFLUX_TOKEN"))
	defer client.Close()
	// Get non-blocking write client
	writeApi := client.WriteApi("w1xm", bucket)
	defer writeApi.Close()
	// Get errors channel
	errorsCh := writeApi.Errors()
	// Create go proc for reading and logging errors
	go func() {
		for err := range errorsCh {
			log.Printf("write error: %v", err)
		}
	}()
	url := os.Getenv("MOUNTD_ADDRESS")
	if url == "" {
		url = "ws://localhost:8502/api/ws"
	}
	for {
		if err := logData(url, writeApi); err != nil {
			log.Print(err)
		}
		time.Sleep(1 * time.Second)
	}
}

// flattenStatus turns nested JSON into dotted field names.
func flattenStatus(fields map[string]interface{}, status interface{}, prefix string) {
	switch status := status.(type) {
	case map[string]interface{}:
		for k, v := range status {
			flattenStatus(fields, v, prefix+"."+k)
		}
	case []interface{}:
		for k, v := range status {
			flattenStatus(fields, v, fmt.Sprintf("%s.%d", prefix, k))
		}
	default:
		if prefix != "" {
			fields[prefix[1:]] = status
		}
	}
}

// statusPoint splits a status into tags, which identify the mount and its
// state, and fields.
func statusPoint(status map[string]interface{}) (tags map[string]string, fields map[string]interface{}) {
	tags = make(map[string]string)
	for _, k := range []string{"driver", "track_state", "pier_side"} {
		if v, ok := status[k].(string); ok {
			tags[k] = v
		}
	}
	fields = make(map[string]interface{})
	flattenStatus(fields, status, "")
	for k := range tags {
		delete(fields, k)
	}
	return tags, fields
}

func logData(url string, writeApi api.WriteApi) error {
	defer writeApi.Flush()
	var dialer websocket.Dialer
	conn, _, err := dialer.Dial(url, nil)
	if err != nil {
		return err
	}
	defer conn.Close()
	for {
		var status map[string]interface{}
		if err := conn.ReadJSON(&status); err != nil {
			return err
		}
		now := time.Now()
		tags, fields := statusPoint(status)
		p := influxdb2.NewPoint("mount.status",
			tags,
			fields,
			now,
		)
		// write asynchronously
		writeApi.WritePoint(p)
	}
}
