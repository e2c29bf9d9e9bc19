// Copyright (c) 2026 Userbase
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/jackc/pgx/v5/pgxpool"
)

// LoadDBOverrides overlays AI settings and the post ceiling from the
// forum's extension config table (<prefix>aimodhelp_config) onto cfg.
// Forum admins edit these values through the forum's admin panel, so when
// forum.config_from_db is enabled the table wins over YAML.
func LoadDBOverrides(ctx context.Context, pool *pgxpool.Pool, cfg *Config) error {
	rows, err := pool.Query(ctx, fmt.Sprintf(
		`SELECT config_name, config_value FROM %saimodhelp_config`, cfg.TablePrefix))
	if err != nil {
		return fmt.Errorf("read extension config table: %w", err)
	}
	defer rows.Close()

	values := map[string]string{}
	for rows.Next() {
		var name, value string
		if err := rows.Scan(&name, &value); err != nil {
			return fmt.Errorf("scan extension config row: %w", err)
		}
		values[name] = value
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("read extension config table: %w", err)
	}

	if v, ok := values["AI_PROVIDER"]; ok && v != "" {
		cfg.AI.Provider = v
	}
	if v, ok := values["AI_API_KEY"]; ok && v != "" {
		cfg.AI.APIKey = v
	}
	if v, ok := values["AI_MODEL"]; ok && v != "" {
		cfg.AI.Model = v
	}
	if v, ok := values["AI_BASEURL"]; ok && v != "" {
		cfg.AI.BaseURL = v
	}
	if v, ok := values["MAX_TOPIC_POSTS"]; ok {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.MaxTopicPosts = n
		}
	}

	slog.Info("applied extension config overrides from database", "keys", len(values))
	return nil
}
