package repository

import "github.com/redis/go-redis/v9"

// settle 腳本回傳值
const (
	settleAccepted = 1
	settleConflict = 0
	settleNotFound = -1
	settleClosed   = -2
	settleExpired  = -3
)

// createScript 建立拍賣
//
//	KEYS[1] - 拍賣 hash
//	KEYS[2] - 進行中拍賣索引
//	ARGV[1] - 拍賣 ID
//	ARGV[2] - 保留時間 (秒)
//	ARGV[3...] - hash 欄位與值
//
// 返回值:
//
//	1 - 建立成功
//	0 - ID 已存在
var createScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then
    return 0
end

redis.call('HSET', KEYS[1], unpack(ARGV, 3))
redis.call('EXPIRE', KEYS[1], ARGV[2])
redis.call('SADD', KEYS[2], ARGV[1])
return 1
`)

// settleScript 以 current_price 做 CAS 並套用一筆出價
//
//	KEYS[1] - 拍賣 hash
//	KEYS[2] - 出價紀錄
//	ARGV[1] - 驗證時讀到的 current_price 文字
//	ARGV[2] - 新價格
//	ARGV[3] - 出價者 ID
//	ARGV[4] - 出價者名稱
//	ARGV[5] - 出價者聯絡方式
//	ARGV[6] - 出價時間 (微秒)，作為 score
//	ARGV[7] - 出價 JSON
//	ARGV[8] - 目前時間 (毫秒)
//	ARGV[9] - 出價紀錄保留筆數
//	ARGV[10] - 即時更新 channel
//	ARGV[11] - 即時更新內容
//
// 返回值:
//
//	1  - 出價成功
//	0  - current_price 已被他人修改
//	-1 - 拍賣不存在
//	-2 - 拍賣已結束
//	-3 - 拍賣已過期
//
// 流程:
//   - 1. 檢查拍賣存在、狀態與結束時間
//   - 2. 比對 current_price，不同則返回0
//   - 3. 寫入出價紀錄並裁切到上限
//   - 4. 更新價格、得標者與出價次數
//   - 5. 在同一個腳本內發佈即時更新，發佈順序即為成交順序
var settleScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
    return -1
end

local state = redis.call('HMGET', KEYS[1], 'status', 'current_price', 'end_time_ms')
if state[1] ~= 'active' then
    return -2
end

local end_ms = tonumber(state[3])
if end_ms and end_ms > 0 and tonumber(ARGV[8]) >= end_ms then
    return -3
end

if state[2] ~= ARGV[1] then
    return 0
end

redis.call('ZADD', KEYS[2], ARGV[6], ARGV[7])
redis.call('ZREMRANGEBYRANK', KEYS[2], 0, -(tonumber(ARGV[9]) + 1))

redis.call('HSET', KEYS[1],
    'current_price', ARGV[2],
    'winner_id', ARGV[3],
    'winner_name', ARGV[4],
    'winner_contact', ARGV[5])
redis.call('HINCRBY', KEYS[1], 'bid_count', 1)

-- 出價紀錄跟著拍賣一起過期
local ttl = redis.call('PTTL', KEYS[1])
if ttl > 0 then
    redis.call('PEXPIRE', KEYS[2], ttl)
end

redis.call('PUBLISH', ARGV[10], ARGV[11])
return 1
`)

// tryCloseScript 將拍賣從 active 轉為 closed，只有一個呼叫者會成功
//
//	KEYS[1] - 拍賣 hash
//	KEYS[2] - 進行中拍賣索引
//	ARGV[1] - 拍賣 ID
//	ARGV[2] - 結束時間
//	ARGV[3] - 即時更新 channel
//	ARGV[4] - 即時更新內容
//
// 返回值:
//
//	1  - 本次呼叫完成了結束轉換
//	0  - 已經結束
//	-1 - 拍賣不存在
//
// 不論結果如何都會把 ID 從索引移除，清掉殘留的索引項目
var tryCloseScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
    redis.call('SREM', KEYS[2], ARGV[1])
    return -1
end

if redis.call('HGET', KEYS[1], 'status') ~= 'active' then
    redis.call('SREM', KEYS[2], ARGV[1])
    return 0
end

redis.call('HSET', KEYS[1], 'status', 'closed', 'closed_at', ARGV[2])
redis.call('SREM', KEYS[2], ARGV[1])
redis.call('PUBLISH', ARGV[3], ARGV[4])
return 1
`)
