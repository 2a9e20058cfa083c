package discord

import (
	"context"

	"github.com/bwmarrin/discordgo"
)

// LogSink posts log lines to a Discord channel. It satisfies logx.Sender.
type LogSink struct {
	s *discordgo.Session
}

func NewLogSink(a *Adapter) *LogSink { return &LogSink{s: a.Session()} }

func (l *LogSink) SendLog(ctx context.Context, channelID, text string) error {
	if l == nil || l.s == nil {
		return nil
	}
	_, err := l.s.ChannelMessageSend(channelID, text, discordgo.WithContext(ctx))
	return mapErr("send log", err)
}
