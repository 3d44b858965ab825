package audio

import "go.uber.org/zap"

// Select builds the playback backend for this process: the speaker backend
// first, the platform system-sound backend when available, then a command
// line player. Each candidate is probed; ones that fail are skipped. With two
// or more survivors they are wrapped in a failover chain; with none, Select
// returns nil and logs a single warning, and callers must treat playback as
// unavailable.
func Select(log *zap.Logger, sampleRate int, commandOverride string) Player {
	if log == nil {
		log = zap.NewNop()
	}

	var players []Player
	sp := NewSpeakerPlayer(log)
	if err := sp.Probe(sampleRate); err == nil {
		players = append(players, sp)
	} else {
		log.Debug("speaker backend unavailable", zap.Error(err))
	}
	if p, err := NewSystemSoundPlayer(log); err == nil {
		players = append(players, p)
	}
	if p, err := NewCommandPlayer(log, commandOverride); err == nil {
		players = append(players, p)
	} else {
		log.Debug("no command-line audio player found", zap.Error(err))
	}

	return selectFrom(log, players)
}

// selectFrom applies the backend policy to the probed candidates.
func selectFrom(log *zap.Logger, players []Player) Player {
	switch len(players) {
	case 0:
		log.Warn("no audio backend available, playback disabled")
		return nil
	case 1:
		return players[0]
	default:
		return NewFailover(log, players...)
	}
}
