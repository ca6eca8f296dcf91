package repository

// keyspace 集中管理所有 Redis key 與 channel 的命名
type keyspace struct {
	prefix string
}

// auction 拍賣主紀錄 (hash)
func (k keyspace) auction(id string) string {
	return k.prefix + "auction:" + id
}

// bids 出價紀錄 (sorted set, score 為微秒時間戳)
func (k keyspace) bids(id string) string {
	return k.prefix + "auction:" + id + ":bids"
}

// active 進行中拍賣的索引 (set)
func (k keyspace) active() string {
	return k.prefix + "auctions:active"
}

// channel 拍賣的即時更新 channel，與 key 共用前綴
func (k keyspace) channel(id string) string {
	return k.prefix + "auction:" + id
}

// channelPattern 所有拍賣即時更新 channel 的 pattern
func (k keyspace) channelPattern() string {
	return k.prefix + "auction:*"
}

// Channel 拍賣的即時更新 channel
func (r *Repository) Channel(auctionID string) string {
	return r.keys.channel(auctionID)
}

// ChannelPattern 訂閱所有拍賣即時更新用的 pattern
func (r *Repository) ChannelPattern() string {
	return r.keys.channelPattern()
}
