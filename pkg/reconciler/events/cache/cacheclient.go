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

package cache

import (
	"context"

	lru "github.com/hashicorp/golang-lru"
	"knative.dev/pkg/logging"
)

// DefaultSize holds events for about a thousand jobs, with four status
// events each.
const DefaultSize = 4096

// cacheKey is a way to associate the Cache from inside the context.Context
type cacheKey struct{}

// WithCacheClient adds a new cache of size entries to the context.
func WithCacheClient(ctx context.Context, size int) context.Context {
	logger := logging.FromContext(ctx)
	if size <= 0 {
		size = DefaultSize
	}
	cacheClient, err := lru.New(size)
	if err != nil {
		logger.Error("unable to create cacheClient :" + err.Error())
		return ctx
	}
	return ToContext(ctx, cacheClient)
}

// Get extracts the cache from the context.
func Get(ctx context.Context) *lru.Cache {
	untyped := ctx.Value(cacheKey{})
	if untyped == nil {
		logging.FromContext(ctx).Errorf("Unable to fetch client from context.")
		return nil
	}
	return untyped.(*lru.Cache)
}

// ToContext adds the cache to the context
func ToContext(ctx context.Context, c *lru.Cache) context.Context {
	return context.WithValue(ctx, cacheKey{}, c)
}
