/*
Copyright 2026 The FleetCI Authors

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package cache remembers which cloud events were already sent.
package cache

import (
	"errors"
	"fmt"
	"hash/fnv"
	"strconv"

	cloudevents "github.com/cloudevents/sdk-go/v2"
	lru "github.com/hashicorp/golang-lru"
)

// ContainsOrAddKey checks if the key exists in the cache
// - it returns true if the key was found in the cache
// - it returns false if it wasn't and adds the key
func ContainsOrAddKey(cacheClient *lru.Cache, key string) (bool, error) {
	if cacheClient == nil {
		return false, errors.New("cache client is nil")
	}
	found, _ := cacheClient.ContainsOrAdd(key, nil)
	return found, nil
}

// ContainsOrAddCloudEvent checks if the event exists in the cache
// - it returns true if the key was found in the cache
// - it returns false if it wasn't and adds the key
// The key is calculated via EventKey
func ContainsOrAddCloudEvent(cacheClient *lru.Cache, event *cloudevents.Event) (bool, error) {
	if cacheClient == nil {
		return false, errors.New("cache client is nil")
	}
	eventKey, err := EventKey(event)
	if err != nil {
		return false, err
	}
	return ContainsOrAddKey(cacheClient, eventKey)
}

// EventKey is the event cache key which combines the event type, source,
// subject and the job result it carries.
func EventKey(event *cloudevents.Event) (string, error) {
	if event == nil {
		return "", errors.New("event must not be nil")
	}
	result, _ := event.Extensions()[ResultExtension].(string)
	return hash(fmt.Sprintf("%s/%s/%s/%s", event.Type(), event.Source(), event.Subject(), result))
}

// ResultExtension is the cloud event extension that carries the job result.
const ResultExtension = "jobresult"

// hash provide fnv64 hash converted to string in base36
func hash(input string) (string, error) {
	hasher := fnv.New64a()
	if _, err := hasher.Write([]byte(input)); err != nil {
		return "", err
	}
	return strconv.FormatUint(hasher.Sum64(), 36), nil
}
