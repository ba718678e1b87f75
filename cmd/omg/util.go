package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

func serverUrlFromState() (string, error) {
	state, err := getState()
	if err != nil {
		return "", err
	}
	url, ok := state["server_url"]
	if !ok {
		return "", fmt.Errorf("set server_url with `omg config set server_url`")
	}
	return url, nil
}

func postRequest(path string, body interface{}) (json.RawMessage, error) {
	url, err := serverUrlFromState()
	if err != nil {
		return nil, err
	}

	buf, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Post(url+path, "application/json", bytes.NewReader(buf))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to omgd daemon: %s", err)
	}
	defer resp.Body.Close()

	return parseResponse(resp)
}

func getRequest(path string) (json.RawMessage, error) {
	url, err := serverUrlFromState()
	if err != nil {
		return nil, err
	}

	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Get(url + path)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to omgd daemon: %s", err)
	}
	defer resp.Body.Close()

	return parseResponse(resp)
}

func parseResponse(resp *http.Response) (json.RawMessage, error) {
	buf, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("daemon replied with error: %s", string(buf))
	}
	return buf, nil
}

func printJSON(raw json.RawMessage) {
	out := &bytes.Buffer{}
	if err := json.Indent(out, raw, "", "   "); err != nil {
		fmt.Println(string(raw))
		return
	}
	fmt.Println(out.String())
}

func getState() (map[string]string, error) {
	file, err := os.ReadFile(statePath)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
		if err := writeState(initialState()); err != nil {
			return nil, err
		}
		return initialState(), nil
	}

	data := map[string]string{}
	//nolint
	json.Unmarshal(file, &data)
	return data, nil
}

func setState(partialState map[string]string) error {
	state, err := getState()
	if err != nil {
		return err
	}

	for key, value := range partialState {
		state[key] = value
	}
	return writeState(state)
}

func writeState(state map[string]string) error {
	buf, _ := json.MarshalIndent(state, "", "   ")
	return os.WriteFile(statePath, buf, 0644)
}
