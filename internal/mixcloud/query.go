package mixcloud

import "fmt"

// remoteWeb is the remote's public website root, used for feed and episode
// links.
const remoteWeb = "https://www.mixcloud.com"

// cloudcastFields is the node selection shared by every feed query.
const cloudcastFields = `
        name
        slug
        description
        publishDate
        audioLength
        isExclusive
        restrictedReason
        owner {
          username
          displayName
        }
        picture(width: 1024, height: 1024) {
          url
        }
        streamInfo {
          url
        }`

// connectionFields maps a canonical music type to the user field that pages
// its cloudcasts. History nodes wrap their cloudcast one level deeper.
var connectionFields = map[string]string{
	"stream":    "stream",
	"shows":     "uploads",
	"favorites": "favorites",
	"history":   "listeningHistory",
}

func pageQuery(musicType string) string {
	field := connectionFields[musicType]
	node := fmt.Sprintf("node {%s\n      }", cloudcastFields)
	if musicType == "history" {
		node = fmt.Sprintf("node {\n        cloudcast {%s\n        }\n      }", cloudcastFields)
	}
	return fmt.Sprintf(`query UserFeed($lookup: UserLookup!, $first: Int!, $after: String) {
  user: userLookup(lookup: $lookup) {
    id
    %s(first: $first, after: $after) {
      edges {
        %s
      }
      pageInfo {
        hasNextPage
        endCursor
      }
    }
  }
}`, field, node)
}

func playlistQuery() string {
	return fmt.Sprintf(`query UserPlaylist($lookup: UserLookup!, $slug: String!, $first: Int!, $after: String) {
  user: userLookup(lookup: $lookup) {
    id
    playlist(slug: $slug) {
      name
      slug
      description
      picture(width: 1024, height: 1024) {
        url
      }
      items(first: $first, after: $after) {
        edges {
          node {
            cloudcast {%s
            }
          }
        }
        pageInfo {
          hasNextPage
          endCursor
        }
      }
    }
  }
}`, cloudcastFields)
}

const profileQuery = `query UserProfile($lookup: UserLookup!) {
  user: userLookup(lookup: $lookup) {
    id
    username
    displayName
    biog
    city
    country
    isSelect
    selectUpsell {
      planInfo {
        displayAmount
      }
    }
    picture(width: 1024, height: 1024) {
      url
    }
  }
}`

const defaultViewQuery = `query UserDefaultView($lookup: UserLookup!) {
  user: userLookup(lookup: $lookup) {
    id
    stream(first: 1) { edges { node { slug } } }
    uploads(first: 1) { edges { node { slug } } }
    favorites(first: 1) { edges { node { slug } } }
    listeningHistory(first: 1) { edges { node { cloudcast { slug } } } }
  }
}`

// Wire types for the JSON the queries above produce.

type wirePicture struct {
	URL string `json:"url"`
}

type wireStreamInfo struct {
	URL string `json:"url"`
}

type wireOwner struct {
	Username    string `json:"username"`
	DisplayName string `json:"displayName"`
}

type wireCloudcast struct {
	Name             string          `json:"name"`
	Slug             string          `json:"slug"`
	Description      string          `json:"description"`
	PublishDate      string          `json:"publishDate"`
	AudioLength      int             `json:"audioLength"`
	IsExclusive      bool            `json:"isExclusive"`
	RestrictedReason string          `json:"restrictedReason"`
	Owner            wireOwner       `json:"owner"`
	Picture          *wirePicture    `json:"picture"`
	StreamInfo       *wireStreamInfo `json:"streamInfo"`
}

type wirePageInfo struct {
	HasNextPage bool   `json:"hasNextPage"`
	EndCursor   string `json:"endCursor"`
}

type wireConnection struct {
	Edges []struct {
		Node wireCloudcast `json:"node"`
	} `json:"edges"`
	PageInfo wirePageInfo `json:"pageInfo"`
}

type wireHistoryConnection struct {
	Edges []struct {
		Node struct {
			Cloudcast wireCloudcast `json:"cloudcast"`
		} `json:"node"`
	} `json:"edges"`
	PageInfo wirePageInfo `json:"pageInfo"`
}

type wirePlaylist struct {
	Name        string                 `json:"name"`
	Slug        string                 `json:"slug"`
	Description string                 `json:"description"`
	Picture     *wirePicture           `json:"picture"`
	Items       *wireHistoryConnection `json:"items"`
}

type wireProfile struct {
	ID          string       `json:"id"`
	Username    string       `json:"username"`
	DisplayName string       `json:"displayName"`
	Biog        string       `json:"biog"`
	City        string       `json:"city"`
	Country     string       `json:"country"`
	IsSelect    bool         `json:"isSelect"`
	Picture     *wirePicture `json:"picture"`
	SelectUpsell *struct {
		PlanInfo struct {
			DisplayAmount string `json:"displayAmount"`
		} `json:"planInfo"`
	} `json:"selectUpsell"`
}

type wireFeedData struct {
	User *struct {
		ID        string                 `json:"id"`
		Stream    *wireConnection        `json:"stream"`
		Uploads   *wireConnection        `json:"uploads"`
		Favorites *wireConnection        `json:"favorites"`
		History   *wireHistoryConnection `json:"listeningHistory"`
		Playlist  *wirePlaylist          `json:"playlist"`
	} `json:"user"`
}

type wireProfileData struct {
	User *wireProfile `json:"user"`
}

func lookupVars(username string) map[string]any {
	return map[string]any{"lookup": map[string]any{"username": username}}
}
