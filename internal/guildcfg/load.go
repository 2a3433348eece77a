package guildcfg

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
)

// Load reads the config file at path and returns the normalized guild
// map. A missing, unreadable, or syntactically corrupt file yields an
// empty map so the bot still starts; only a non-numeric guild key is
// fatal, since that means the file was hand-edited beyond safe repair
// and silently dropping a whole guild would lose data.
func Load(path string) (map[int64]*GuildConfig, error) {
	guilds := map[int64]*GuildConfig{}

	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			slog.Warn("Config file unreadable, starting with empty config", "path", path, "error", err)
		}
		return guilds, nil
	}

	// UseNumber keeps Discord snowflake ids exact; they overflow
	// float64 precision.
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber()

	var raw map[string]any
	if err := decoder.Decode(&raw); err != nil {
		slog.Warn("Config file corrupt, starting with empty config", "path", path, "error", err)
		return guilds, nil
	}

	for key, value := range raw {
		guildID, err := strconv.ParseInt(key, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("config key %q is not a guild id: %w", key, err)
		}
		// A record that is not a JSON object still normalizes, to an
		// empty guild.
		record, _ := asMap(value)
		guilds[guildID] = Migrate(record)
	}
	return guilds, nil
}
