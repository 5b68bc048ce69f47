package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"math"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
)

var maxDevices int = 1000
var httpHostPort string = "127.0.0.1:1080"

var rnd *rand.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))

func main() {
	resp, err := http.Get(fmt.Sprintf("http://%s/healthz", httpHostPort))
	if err != nil {
		log.Fatal("Failed to connect to HTTP server:", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		log.Fatal("HTTP server not available")
	}

	fmt.Printf("http server verified\n")

	var startTime time.Time
	var usedTime time.Duration

	deviceIDs := make([]string, maxDevices)

	startTime = time.Now()
	wg := sync.WaitGroup{}
	for i := range maxDevices {
		wg.Add(1)
		go func() {
			deviceIDs[i] = registerDevice(i)
			fmt.Printf("\rregistered device %v", i)
			wg.Done()
		}()
	}
	wg.Wait()
	usedTime = time.Since(startTime)

	fmt.Printf(
		"\rregistered %v devices: used time=%v seconds, throughput=%v action/second\n",
		maxDevices, usedTime.Seconds(), float64(maxDevices)/usedTime.Seconds(),
	)

	startTime = time.Now()
	wg = sync.WaitGroup{}
	for i := range maxDevices {
		wg.Add(1)
		go func() {
			doAction(deviceIDs[i])
			wg.Done()
		}()
	}
	wg.Wait()
	usedTime = time.Since(startTime)

	fmt.Printf(
		"\n\rdid actions for %v devices: used time=%v seconds, throughput=%v action/second\n",
		maxDevices, usedTime.Seconds(), float64(maxDevices*3)/usedTime.Seconds(),
	)
}

func rndFloat64(min, max float64, decimal int) float64 {
	val := min + rnd.Float64()*(max-min)
	multiplier := float64(math.Pow10(decimal))
	return float64(math.Round(float64(val)*float64(multiplier))) / multiplier
}

func postJSON(url string, payload any) *http.Response {
	jsonData, _ := json.Marshal(payload)
	resp, err := http.Post(url, "application/json", bytes.NewBuffer(jsonData))
	if err != nil {
		panic(err)
	}
	return resp
}

func registerDevice(i int) string {
	patientID := uuid.NewString()
	resp := postJSON(fmt.Sprintf("http://%s/devices", httpHostPort), map[string]any{
		"tenantId":     "loadgen",
		"facilityId":   "ward-1",
		"serialNumber": fmt.Sprintf("LG-%06d", i),
		"name":         fmt.Sprintf("monitor-%v", i),
		"type":         "patient_monitor",
		"protocol":     "http",
		"connectionParams": map[string]any{
			"http": map[string]any{"endpoint": fmt.Sprintf("http://%s", httpHostPort)},
		},
		"patientId": patientID,
		"createdBy": "loadgen",
	})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		panic(fmt.Sprintf("register failed with status %v", resp.StatusCode))
	}

	var created struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		panic(err)
	}
	return created.ID
}

func doAction(deviceID string) {
	actions := []func(){
		genPostVitalsAction(deviceID),
		genHeartbeatAction(deviceID),
		genGetAlertsAction(deviceID),
	}
	actionNames := []string{
		"PostVitals",
		"Heartbeat",
		"GetAlerts",
	}
	rnd.Shuffle(len(actions), func(i, j int) {
		actions[i], actions[j] = actions[j], actions[i]
		actionNames[i], actionNames[j] = actionNames[j], actionNames[i]
	})
	for index, action := range actions {
		action()
		fmt.Printf("\rexecuted action %v for device %v", actionNames[index], deviceID)
		time.Sleep(time.Duration(100+rnd.Int31n(1000)) * time.Millisecond)
	}
}

func genPostVitalsAction(deviceID string) func() {
	return func() {
		resp := postJSON(fmt.Sprintf("http://%s/vital-signs", httpHostPort), map[string]any{
			"deviceId":         deviceID,
			"observedAt":       time.Now().UnixMilli(),
			"heartRate":        rndFloat64(30.0, 180.0, 1),
			"temperature":      rndFloat64(34.0, 41.0, 2),
			"respiratoryRate":  rndFloat64(6.0, 35.0, 1),
			"oxygenSaturation": rndFloat64(85.0, 100.0, 1),
		})
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusTooManyRequests {
			fmt.Printf("\nunexpected vitals status: %v\n", resp.StatusCode)
		}
	}
}

func genHeartbeatAction(deviceID string) func() {
	return func() {
		resp := postJSON(fmt.Sprintf("http://%s/devices/%s/heartbeat", httpHostPort, deviceID), map[string]any{
			"batteryLevel":   rndFloat64(0.0, 100.0, 1),
			"signalStrength": rndFloat64(0.0, 100.0, 1),
		})
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusNoContent {
			fmt.Printf("\nunexpected heartbeat status: %v\n", resp.StatusCode)
		}
	}
}

func genGetAlertsAction(deviceID string) func() {
	return func() {
		resp, err := http.Get(fmt.Sprintf("http://%s/alerts?deviceId=%s", httpHostPort, deviceID))
		if err != nil {
			fmt.Printf("\nerror: %v\n", err)
			return
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			fmt.Printf("\nresponse status code != 200: %v\n", resp.StatusCode)
		}
	}
}
